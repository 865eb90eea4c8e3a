package domain

import "time"

type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether the backend will never transition the job again.
func (s JobState) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// IndexJob is the polled view of a backend ingestion/indexing task.
type IndexJob struct {
	JobID            int64     `json:"jobId"`
	RepoID           int64     `json:"repoId"`
	State            JobState  `json:"state"`
	Progress         float64   `json:"progress"`
	FilesProcessed   int       `json:"filesProcessed"`
	ChunksCreated    int       `json:"chunksCreated"`
	SymbolsExtracted int       `json:"symbolsExtracted"`
	StartedAt        time.Time `json:"startedAt"`
	CompletedAt      time.Time `json:"completedAt"`
	ErrorMessage     string    `json:"errorMessage,omitempty"`
}

// IndexOptions selects what a freshly started index job covers.
type IndexOptions struct {
	Branch      string
	Force       bool
	Incremental bool
}

type IndexStats struct {
	RepoID           int64     `json:"repoId"`
	FilesIndexed     int       `json:"filesIndexed"`
	ChunksCreated    int       `json:"chunksCreated"`
	SymbolsExtracted int       `json:"symbolsExtracted"`
	EmbeddingsCount  int       `json:"embeddingsCount"`
	IsIndexed        bool      `json:"isIndexed"`
	HasEmbeddings    bool      `json:"hasEmbeddings"`
	LastIndexedAt    time.Time `json:"lastIndexedAt"`
	LastIndexStatus  JobState  `json:"lastIndexStatus,omitempty"`
}

type ClearIndexResult struct {
	Message        string `json:"message"`
	FilesDeleted   int    `json:"filesDeleted"`
	ChunksDeleted  int    `json:"chunksDeleted"`
	SymbolsDeleted int    `json:"symbolsDeleted"`
}
