package ragapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
	"github.com/mkorchagin/coderag-client/internal/core/ports"
)

type chatResponse struct {
	ID        int64           `json:"id"`
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	Sources   []wireSourceRef `json:"sources"`
	Metadata  map[string]any  `json:"metadata"`
	CreatedAt apiTime         `json:"created_at"`
}

type chatHistoryItem struct {
	ID              int64           `json:"id"`
	RepoID          int64           `json:"repo_id"`
	Question        string          `json:"question"`
	Answer          string          `json:"answer"`
	Sources         []wireSourceRef `json:"sources"`
	MessageMetadata map[string]any  `json:"message_metadata"`
	CreatedAt       apiTime         `json:"created_at"`
}

// validateChatRequest rejects unanswerable questions before any request is
// built. The check is synchronous so callers can surface it immediately.
func validateChatRequest(operation string, req domain.ChatRequest) error {
	if strings.TrimSpace(req.Question) == "" {
		return domain.WrapError(domain.ErrValidation, operation, errors.New("question must not be empty"))
	}
	return nil
}

// chatPayload normalizes the request to the backend's contract: top_k
// clamped to 1..20 with a default of 5, prompt style defaulting to the
// senior developer persona.
func chatPayload(req domain.ChatRequest) map[string]any {
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	if topK > 20 {
		topK = 20
	}
	style := req.PromptStyle
	if style == "" {
		style = domain.PromptSeniorDev
	}
	return map[string]any{
		"question":         strings.TrimSpace(req.Question),
		"top_k":            topK,
		"prompt_style":     style,
		"include_sources":  req.IncludeSources,
		"include_metadata": req.IncludeMetadata,
	}
}

// Ask runs the non-streaming chat flow and returns the persisted turn.
func (c *Client) Ask(ctx context.Context, req domain.ChatRequest) (domain.ChatMessage, error) {
	const operation = "chat"

	if err := validateChatRequest(operation, req); err != nil {
		return domain.ChatMessage{}, err
	}

	var wire chatResponse
	err := c.oneShot(ctx, operation, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/repos/%d/chat", req.RepoID), nil, chatPayload(req), &wire, operation)
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.ChatMessage{
		ID:        wire.ID,
		RepoID:    req.RepoID,
		Question:  wire.Question,
		Answer:    wire.Answer,
		Sources:   sourceRefsToDomain(wire.Sources),
		Metadata:  wire.Metadata,
		CreatedAt: wire.CreatedAt.Time,
	}, nil
}

func (c *Client) History(ctx context.Context, repoID int64, limit int) ([]domain.ChatMessage, error) {
	const operation = "chat history"

	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var wire []chatHistoryItem
	err := c.withRetry(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, fmt.Sprintf("/repos/%d/history", repoID), params, &wire, operation)
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.ChatMessage, 0, len(wire))
	for _, item := range wire {
		messages = append(messages, domain.ChatMessage{
			ID:        item.ID,
			RepoID:    item.RepoID,
			Question:  item.Question,
			Answer:    item.Answer,
			Sources:   sourceRefsToDomain(item.Sources),
			Metadata:  item.MessageMetadata,
			CreatedAt: item.CreatedAt.Time,
		})
	}
	return messages, nil
}

// OpenChatStream validates the question, opens the streamed answer and
// hands back the decoder. The caller owns Close.
func (c *Client) OpenChatStream(ctx context.Context, req domain.ChatRequest) (ports.EventStream, error) {
	const operation = "chat stream"

	if err := validateChatRequest(operation, req); err != nil {
		return nil, err
	}

	var stream ports.EventStream
	err := c.oneShot(ctx, operation, func(ctx context.Context) error {
		body, err := c.openStream(ctx, fmt.Sprintf("/repos/%d/chat/stream", req.RepoID), chatPayload(req), operation)
		if err != nil {
			return err
		}
		stream = newChatStream(body, c.logger, c.metrics)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}
