package ragapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
)

// errorBodyLimit caps how much of a failed response is kept for the
// normalized error message.
const errorBodyLimit = 4096

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := c.newRequest(ctx, method, path, query, body, operation)
	if err != nil {
		return err
	}

	resp, err := c.send(req, c.httpClient, operation)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrProtocol, operation, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any, operation string) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out, operation)
}

// openStream issues the request on the unbounded client and hands the body
// back to the caller, who owns closing it. Non-2xx responses are drained
// into the same error shape as one-shot calls.
func (c *Client) openStream(ctx context.Context, path string, payload any, operation string) (io.ReadCloser, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(encoded), operation)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.send(req, c.streamClient, operation)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(operation, resp)
	}
	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, operation string) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

// send applies the politeness limiter, executes the request and records
// observability side effects. It never alters response bodies or the shape
// of returned errors beyond attaching the error kind.
func (c *Client) send(req *http.Request, client *http.Client, operation string) (*http.Response, error) {
	ctx := req.Context()
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(contextKind(ctx), operation, err)
		}
		return nil, domain.WrapError(domain.ErrTransport, operation, err)
	}

	c.metrics.RequestStarted()
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	c.metrics.RequestFinished()

	if err != nil {
		c.metrics.RecordRequest(operation, 0, elapsed)
		c.logger.Debug("api_request_failed",
			slog.String("operation", operation),
			slog.String("method", req.Method),
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
		)
		if ctx.Err() != nil {
			return nil, domain.WrapError(contextKind(ctx), operation, err)
		}
		return nil, domain.WrapError(domain.ErrTransport, operation, err)
	}

	c.metrics.RecordRequest(operation, resp.StatusCode, elapsed)
	c.logger.Debug("api_request",
		slog.String("operation", operation),
		slog.String("method", req.Method),
		slog.Int("status", resp.StatusCode),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	)
	return resp, nil
}

// statusError reads the capped error body and returns it typed, so
// ExtractMessage can surface whatever the backend said.
func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &domain.TransportError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func contextKind(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout
	}
	return domain.ErrCancelled
}
