package ragapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkorchagin/coderag-client/internal/infrastructure/resilience"
	"github.com/mkorchagin/coderag-client/internal/observability/logging"
	"github.com/mkorchagin/coderag-client/internal/observability/metrics"
)

// Client talks to the codebase-RAG backend. One instance is safe for
// concurrent use; all blocking calls take a context.
type Client struct {
	baseURL   string
	userAgent string

	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	executor     *resilience.Executor
	logger       *slog.Logger
	metrics      *metrics.ClientMetrics
}

func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{})
}

type Options struct {
	HTTPTimeout        time.Duration
	RPS                float64
	Burst              int
	UserAgent          string
	Logger             *slog.Logger
	Metrics            *metrics.ClientMetrics
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(baseURL string, options Options) *Client {
	httpTimeout := options.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	rps := options.RPS
	if rps <= 0 {
		rps = 8
	}
	burst := options.Burst
	if burst <= 0 {
		burst = 16
	}
	userAgent := strings.TrimSpace(options.UserAgent)
	if userAgent == "" {
		userAgent = "coderag-client/1.0"
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: httpTimeout},
		// Streamed answers stay open for minutes; the request context
		// bounds them instead of a client-wide timeout.
		streamClient: &http.Client{},
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		executor:     options.ResilienceExecutor,
		logger:       logger,
		metrics:      options.Metrics,
	}
}

// withRetry runs an idempotent read through the retry and breaker policy.
func (c *Client) withRetry(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return wrapTemporaryIfNeeded(operation, call(ctx))
	}
	return wrapTemporaryIfNeeded(operation, c.executor.Execute(ctx, operation, call, classifyAPIError))
}

// oneShot issues exactly one request per invocation. Mutations and polled
// reads go through here so callers see every attempt on the wire.
func (c *Client) oneShot(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return wrapTemporaryIfNeeded(operation, call(ctx))
	}
	return wrapTemporaryIfNeeded(operation, c.executor.ExecuteOnce(ctx, operation, call, classifyAPIError))
}
