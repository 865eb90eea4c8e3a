package ragapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
)

type indexJobStatus struct {
	JobID            int64    `json:"job_id"`
	RepoID           int64    `json:"repo_id"`
	Status           string   `json:"status"`
	Progress         float64  `json:"progress"`
	FilesProcessed   int      `json:"files_processed"`
	ChunksCreated    int      `json:"chunks_created"`
	SymbolsExtracted int      `json:"symbols_extracted"`
	StartedAt        *apiTime `json:"started_at"`
	CompletedAt      *apiTime `json:"completed_at"`
	ErrorMessage     *string  `json:"error_message"`
}

func (w indexJobStatus) toDomain() domain.IndexJob {
	return domain.IndexJob{
		JobID:            w.JobID,
		RepoID:           w.RepoID,
		State:            domain.JobState(w.Status),
		Progress:         w.Progress,
		FilesProcessed:   w.FilesProcessed,
		ChunksCreated:    w.ChunksCreated,
		SymbolsExtracted: w.SymbolsExtracted,
		StartedAt:        apiTimeValue(w.StartedAt),
		CompletedAt:      apiTimeValue(w.CompletedAt),
		ErrorMessage:     strOr(w.ErrorMessage),
	}
}

// StartIndex kicks off an indexing job; the backend replies immediately
// while the work continues in the background.
func (c *Client) StartIndex(ctx context.Context, repoID int64, opts domain.IndexOptions) (domain.IndexJob, error) {
	const operation = "start index"

	payload := map[string]any{
		"force":       opts.Force,
		"incremental": opts.Incremental,
	}
	if opts.Branch != "" {
		payload["branch"] = opts.Branch
	}

	var wire indexJobStatus
	err := c.oneShot(ctx, operation, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/repos/%d/index", repoID), nil, payload, &wire, operation)
	})
	if err != nil {
		return domain.IndexJob{}, err
	}
	return wire.toDomain(), nil
}

// IndexStatus reads the state of one job. A jobID of zero asks for the
// latest job of the repository. One call is one request, which is what the
// tracker's per-attempt accounting relies on.
func (c *Client) IndexStatus(ctx context.Context, repoID, jobID int64) (domain.IndexJob, error) {
	const operation = "index status"

	params := url.Values{}
	if jobID > 0 {
		params.Set("job_id", strconv.FormatInt(jobID, 10))
	}

	var wire indexJobStatus
	err := c.oneShot(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, fmt.Sprintf("/repos/%d/index/status", repoID), params, &wire, operation)
	})
	if err != nil {
		return domain.IndexJob{}, err
	}
	return wire.toDomain(), nil
}

type indexStatsResponse struct {
	RepoID           int64    `json:"repo_id"`
	FilesIndexed     int      `json:"files_indexed"`
	ChunksCreated    int      `json:"chunks_created"`
	SymbolsExtracted int      `json:"symbols_extracted"`
	EmbeddingsCount  int      `json:"embeddings_count"`
	IsIndexed        bool     `json:"is_indexed"`
	HasEmbeddings    bool     `json:"has_embeddings"`
	LastIndexedAt    *apiTime `json:"last_indexed_at"`
	LastIndexStatus  *string  `json:"last_index_status"`
}

func (c *Client) IndexStats(ctx context.Context, repoID int64) (domain.IndexStats, error) {
	const operation = "index stats"

	var wire indexStatsResponse
	err := c.withRetry(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, fmt.Sprintf("/repos/%d/index/stats", repoID), nil, &wire, operation)
	})
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		RepoID:           wire.RepoID,
		FilesIndexed:     wire.FilesIndexed,
		ChunksCreated:    wire.ChunksCreated,
		SymbolsExtracted: wire.SymbolsExtracted,
		EmbeddingsCount:  wire.EmbeddingsCount,
		IsIndexed:        wire.IsIndexed,
		HasEmbeddings:    wire.HasEmbeddings,
		LastIndexedAt:    apiTimeValue(wire.LastIndexedAt),
		LastIndexStatus:  domain.JobState(strOr(wire.LastIndexStatus)),
	}, nil
}

type clearIndexResponse struct {
	Message        string `json:"message"`
	FilesDeleted   int    `json:"files_deleted"`
	ChunksDeleted  int    `json:"chunks_deleted"`
	SymbolsDeleted int    `json:"symbols_deleted"`
}

func (c *Client) ClearIndex(ctx context.Context, repoID int64) (domain.ClearIndexResult, error) {
	const operation = "clear index"

	var wire clearIndexResponse
	err := c.oneShot(ctx, operation, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/repos/%d/index", repoID), nil, nil, &wire, operation)
	})
	if err != nil {
		return domain.ClearIndexResult{}, err
	}
	return domain.ClearIndexResult{
		Message:        wire.Message,
		FilesDeleted:   wire.FilesDeleted,
		ChunksDeleted:  wire.ChunksDeleted,
		SymbolsDeleted: wire.SymbolsDeleted,
	}, nil
}
