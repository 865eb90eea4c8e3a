package ragapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
	"github.com/mkorchagin/coderag-client/internal/infrastructure/resilience"
)

func TestRequestsCarryStandardHeaders(t *testing.T) {
	var captured http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		_, _ = w.Write([]byte(`{"status":"healthy","ollama_url":"http://o","model":"m","embed_model":"e"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	if _, err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if captured.Get("Accept") != "application/json" {
		t.Fatalf("unexpected accept header %q", captured.Get("Accept"))
	}
	if captured.Get("User-Agent") != "coderag-client/1.0" {
		t.Fatalf("unexpected user agent %q", captured.Get("User-Agent"))
	}
	if captured.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestStatusErrorCarriesBackendDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Repository not found"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Repository(context.Background(), 9)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport kind, got %v", err)
	}
	var statusErr *domain.TransportError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected typed 404, got %v", err)
	}
	if got := domain.ExtractMessage(err); got != "Repository not found" {
		t.Fatalf("ExtractMessage() = %q", got)
	}
}

func TestDecodeFailureIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": truncated`))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Health(context.Background())
	if !domain.IsKind(err, domain.ErrProtocol) {
		t.Fatalf("expected protocol kind, got %v", err)
	}
}

func TestReadsRetryRetryableStatuses(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"detail":"warming up"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			Multiplier:     2,
		},
	})
	client := NewWithOptions(server.URL, Options{ResilienceExecutor: executor})

	_, err := client.Health(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind after exhausted retries, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestPolledStatusNeverRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"detail":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
		},
	})
	client := NewWithOptions(server.URL, Options{ResilienceExecutor: executor})

	_, err := client.IndexStatus(context.Background(), 1, 7)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 request, got %d", got)
	}
}

func TestNonRetryableStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"detail":"Repository not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
		},
	})
	client := NewWithOptions(server.URL, Options{ResilienceExecutor: executor})

	_, err := client.Repository(context.Background(), 9)
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 must not be marked temporary: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 attempt for non-retryable status, got %d", got)
	}
}

func TestCancelledContextMapsToCancelledKind(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := New(server.URL)
	_, err := client.Health(ctx)
	if !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected cancelled kind, got %v", err)
	}
}

func TestDeadlineMapsToTimeoutKind(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := New(server.URL)
	_, err := client.Health(ctx)
	if !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout kind, got %v", err)
	}
}
