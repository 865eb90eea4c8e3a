package ports

import (
	"context"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
)

// SearchClient executes one search request against the backend.
type SearchClient interface {
	Search(ctx context.Context, req domain.SearchRequest) (domain.SearchPage, error)
}

// JobClient reads the state of one index job. The tracker depends on this
// and nothing else.
type JobClient interface {
	IndexStatus(ctx context.Context, repoID, jobID int64) (domain.IndexJob, error)
}

// EventStream yields decoded chat frames in wire order. Next returns io.EOF
// once the body is exhausted; a frame that fails to decode comes back as an
// ErrProtocol kind while the stream stays readable.
type EventStream interface {
	Next() (domain.StreamEvent, error)
	Close() error
}

// ChatStreamOpener opens the streamed answer for one question.
type ChatStreamOpener interface {
	OpenChatStream(ctx context.Context, req domain.ChatRequest) (EventStream, error)
}

// RepositoryClient covers repository lifecycle and metadata reads.
type RepositoryClient interface {
	Ingest(ctx context.Context, githubURL string) (domain.IngestReceipt, error)
	Reingest(ctx context.Context, repoID int64) (domain.IngestReceipt, error)
	Repository(ctx context.Context, repoID int64) (domain.Repository, error)
	ListRepositories(ctx context.Context) ([]domain.Repository, error)
	DeleteRepository(ctx context.Context, repoID int64) error
}

// IndexClient manages the search index of one repository.
type IndexClient interface {
	StartIndex(ctx context.Context, repoID int64, opts domain.IndexOptions) (domain.IndexJob, error)
	IndexStatus(ctx context.Context, repoID, jobID int64) (domain.IndexJob, error)
	IndexStats(ctx context.Context, repoID int64) (domain.IndexStats, error)
	ClearIndex(ctx context.Context, repoID int64) (domain.ClearIndexResult, error)
}

// CodeReader serves symbol lookups and file slices behind search results.
type CodeReader interface {
	Symbols(ctx context.Context, repoID int64, q domain.SymbolQuery) (domain.SymbolPage, error)
	FileContent(ctx context.Context, repoID, fileID int64, lines domain.LineRange) (domain.FileSlice, error)
}

// ChatArchive asks one-shot questions and lists persisted turns.
type ChatArchive interface {
	Ask(ctx context.Context, req domain.ChatRequest) (domain.ChatMessage, error)
	History(ctx context.Context, repoID int64, limit int) ([]domain.ChatMessage, error)
}

// HealthChecker probes the backend's RAG pipeline.
type HealthChecker interface {
	Health(ctx context.Context) (domain.RAGHealth, error)
}
