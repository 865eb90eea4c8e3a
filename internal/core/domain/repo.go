package domain

import "time"

type RepoState string

const (
	RepoPending    RepoState = "pending"
	RepoProcessing RepoState = "processing"
	RepoCompleted  RepoState = "completed"
	RepoFailed     RepoState = "failed"
)

type Repository struct {
	ID        int64          `json:"id"`
	GithubURL string         `json:"githubUrl"`
	Status    RepoState      `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	LocalPath string         `json:"localPath,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// IngestReceipt acknowledges an accepted ingestion; processing continues in
// the backend and is observed through repository status or an index job.
type IngestReceipt struct {
	ID        int64     `json:"id"`
	GithubURL string    `json:"githubUrl"`
	Status    RepoState `json:"status"`
	Message   string    `json:"message"`
}

type RAGHealth struct {
	Status       string `json:"status"`
	OllamaURL    string `json:"ollamaUrl"`
	Model        string `json:"model"`
	EmbedModel   string `json:"embedModel"`
	EmbeddingDim int    `json:"embeddingDim,omitempty"`
	Error        string `json:"error,omitempty"`
}
