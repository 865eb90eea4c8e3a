package domain

import "time"

type EventType string

const (
	EventToken   EventType = "token"
	EventSources EventType = "sources"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// StreamEvent is one decoded frame of the chat stream. Type selects which
// of the remaining fields carries the payload.
type StreamEvent struct {
	Type      EventType
	Content   string
	Sources   []SourceRef
	MessageID int64
}

type SourceRef struct {
	FilePath       string  `json:"filePath"`
	Language       string  `json:"language"`
	RelevanceScore float64 `json:"relevanceScore"`
	Lines          string  `json:"lines,omitempty"`
}

const (
	PromptSeniorDev   = "senior_dev"
	PromptConcise     = "concise"
	PromptEducational = "educational"
)

type ChatRequest struct {
	RepoID          int64
	Question        string
	TopK            int
	PromptStyle     string
	IncludeSources  bool
	IncludeMetadata bool
}

// ChatMessage is a persisted question/answer pair as the backend returns it
// from the non-streaming endpoint and the history listing.
type ChatMessage struct {
	ID        int64          `json:"id"`
	RepoID    int64          `json:"repoId"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Sources   []SourceRef    `json:"sources"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionOpening   SessionState = "opening"
	SessionStreaming SessionState = "streaming"
	SessionCompleted SessionState = "completed"
	SessionFailed    SessionState = "failed"
	SessionCancelled SessionState = "cancelled"
)

// Terminal reports whether the session accepts no further events.
func (s SessionState) Terminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionCancelled:
		return true
	default:
		return false
	}
}
