package ragapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
)

type repositoryResponse struct {
	ID           int64          `json:"id"`
	GithubURL    string         `json:"github_url"`
	Status       string         `json:"status"`
	RepoMetadata map[string]any `json:"repo_metadata"`
	LocalPath    *string        `json:"local_path"`
	CreatedAt    apiTime        `json:"created_at"`
	UpdatedAt    *apiTime       `json:"updated_at"`
}

func (w repositoryResponse) toDomain() domain.Repository {
	return domain.Repository{
		ID:        w.ID,
		GithubURL: w.GithubURL,
		Status:    domain.RepoState(w.Status),
		Metadata:  w.RepoMetadata,
		LocalPath: strOr(w.LocalPath),
		CreatedAt: w.CreatedAt.Time,
		UpdatedAt: apiTimeValue(w.UpdatedAt),
	}
}

type ingestResponse struct {
	ID        int64  `json:"id"`
	GithubURL string `json:"github_url"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (w ingestResponse) toDomain() domain.IngestReceipt {
	return domain.IngestReceipt{
		ID:        w.ID,
		GithubURL: w.GithubURL,
		Status:    domain.RepoState(w.Status),
		Message:   w.Message,
	}
}

// Ingest registers a GitHub repository and starts background processing.
func (c *Client) Ingest(ctx context.Context, githubURL string) (domain.IngestReceipt, error) {
	const operation = "ingest"

	githubURL = strings.TrimSpace(githubURL)
	if githubURL == "" {
		return domain.IngestReceipt{}, domain.WrapError(domain.ErrValidation, operation, errors.New("github url must not be empty"))
	}

	payload := map[string]any{"github_url": githubURL}

	var wire ingestResponse
	err := c.oneShot(ctx, operation, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, "/repos/ingest", nil, payload, &wire, operation)
	})
	if err != nil {
		return domain.IngestReceipt{}, err
	}
	return wire.toDomain(), nil
}

func (c *Client) Reingest(ctx context.Context, repoID int64) (domain.IngestReceipt, error) {
	const operation = "reingest"

	var wire ingestResponse
	err := c.oneShot(ctx, operation, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/repos/%d/reingest", repoID), nil, nil, &wire, operation)
	})
	if err != nil {
		return domain.IngestReceipt{}, err
	}
	return wire.toDomain(), nil
}

func (c *Client) Repository(ctx context.Context, repoID int64) (domain.Repository, error) {
	const operation = "get repository"

	var wire repositoryResponse
	err := c.withRetry(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, fmt.Sprintf("/repos/%d", repoID), nil, &wire, operation)
	})
	if err != nil {
		return domain.Repository{}, err
	}
	return wire.toDomain(), nil
}

func (c *Client) ListRepositories(ctx context.Context) ([]domain.Repository, error) {
	const operation = "list repositories"

	var wire []repositoryResponse
	err := c.withRetry(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, "/repos/", nil, &wire, operation)
	})
	if err != nil {
		return nil, err
	}

	repos := make([]domain.Repository, 0, len(wire))
	for _, item := range wire {
		repos = append(repos, item.toDomain())
	}
	return repos, nil
}

// DeleteRepository removes the repository and everything derived from it.
// The backend answers 204 with no body.
func (c *Client) DeleteRepository(ctx context.Context, repoID int64) error {
	const operation = "delete repository"

	return c.oneShot(ctx, operation, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/repos/%d", repoID), nil, nil, nil, operation)
	})
}

type healthResponse struct {
	Status       string  `json:"status"`
	OllamaURL    string  `json:"ollama_url"`
	Model        string  `json:"model"`
	EmbedModel   string  `json:"embed_model"`
	EmbeddingDim *int    `json:"embedding_dim"`
	Error        *string `json:"error"`
}

func (c *Client) Health(ctx context.Context) (domain.RAGHealth, error) {
	const operation = "rag health"

	var wire healthResponse
	err := c.withRetry(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, "/repos/health/rag", nil, &wire, operation)
	})
	if err != nil {
		return domain.RAGHealth{}, err
	}
	return domain.RAGHealth{
		Status:       wire.Status,
		OllamaURL:    wire.OllamaURL,
		Model:        wire.Model,
		EmbedModel:   wire.EmbedModel,
		EmbeddingDim: intOr(wire.EmbeddingDim),
		Error:        strOr(wire.Error),
	}, nil
}
