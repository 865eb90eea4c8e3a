package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkorchagin/coderag-client/internal/config"
	"github.com/mkorchagin/coderag-client/internal/core/domain"
	"github.com/mkorchagin/coderag-client/internal/core/ports"
	"github.com/mkorchagin/coderag-client/internal/core/usecase"
	"github.com/mkorchagin/coderag-client/internal/infrastructure/ragapi"
	"github.com/mkorchagin/coderag-client/internal/infrastructure/resilience"
	"github.com/mkorchagin/coderag-client/internal/observability/logging"
	"github.com/mkorchagin/coderag-client/internal/observability/metrics"
)

const serviceName = "coderag-client"

// App wires configuration, observability, the backend client and the
// use cases. The backend surface is exposed through the outbound ports;
// sessions are per-interaction and built through the New* helpers.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.ClientMetrics

	Repos   ports.RepositoryClient
	Index   ports.IndexClient
	Search  ports.SearchClient
	Code    ports.CodeReader
	Chat    ports.ChatArchive
	Health  ports.HealthChecker
	Tracker ports.JobTracker

	client *ragapi.Client
}

func New(cfg config.Config) *App {
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	m := metrics.NewClientMetrics(serviceName)

	executor := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
			Multiplier:     cfg.RetryMultiplier,
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:          cfg.BreakerEnabled,
			MinRequests:      uint32(cfg.BreakerMinRequests),
			FailureRatio:     cfg.BreakerFailureRatio,
			OpenTimeout:      time.Duration(cfg.BreakerOpenSeconds) * time.Second,
			HalfOpenMaxCalls: uint32(cfg.BreakerHalfOpenCalls),
		},
	})

	client := ragapi.NewWithOptions(cfg.BaseURL, ragapi.Options{
		HTTPTimeout:        time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		RPS:                cfg.ClientRPS,
		Burst:              cfg.ClientBurst,
		Logger:             logger,
		Metrics:            m,
		ResilienceExecutor: executor,
	})

	tracker := usecase.NewTrackJobUseCase(
		client,
		time.Duration(cfg.PollIntervalMS)*time.Millisecond,
		cfg.PollMaxAttempts,
		m,
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Repos:   client,
		Index:   client,
		Search:  client,
		Code:    client,
		Chat:    client,
		Health:  client,
		Tracker: tracker,
		client:  client,
	}
}

// NewSearchSession builds a debounced search session for one repository,
// tuned from configuration.
func (a *App) NewSearchSession(ctx context.Context, repoID int64, onResults func(domain.SearchPage), onError func(string)) ports.QuerySession {
	return usecase.NewSearchSession(ctx, a.client, repoID, usecase.SearchSessionOptions{
		Debounce:  time.Duration(a.Config.DebounceMS) * time.Millisecond,
		PageSize:  a.Config.SearchPageSize,
		Mode:      domain.SearchMode(a.Config.SearchMode),
		OnResults: onResults,
		OnError:   onError,
		Metrics:   a.Metrics,
	})
}

// NewChatSession builds a single-use streaming chat session.
func (a *App) NewChatSession(callbacks usecase.ChatCallbacks) ports.ChatStreamer {
	return usecase.NewChatSession(a.client, callbacks, a.Logger, a.Metrics)
}
