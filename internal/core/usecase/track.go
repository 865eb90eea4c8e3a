package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
	"github.com/mkorchagin/coderag-client/internal/core/ports"
	"github.com/mkorchagin/coderag-client/internal/observability/metrics"
)

// TrackJobUseCase follows one index job until it settles. Each attempt is
// exactly one status request; a transport failure aborts tracking instead
// of being retried here.
type TrackJobUseCase struct {
	jobs        ports.JobClient
	interval    time.Duration
	maxAttempts int
	metrics     *metrics.ClientMetrics
}

func NewTrackJobUseCase(
	jobs ports.JobClient,
	interval time.Duration,
	maxAttempts int,
	m *metrics.ClientMetrics,
) *TrackJobUseCase {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 100
	}
	return &TrackJobUseCase{
		jobs:        jobs,
		interval:    interval,
		maxAttempts: maxAttempts,
		metrics:     m,
	}
}

// Track polls the job and reports every observed snapshot through onUpdate
// before the next wait. It resolves with the job once the backend marks it
// terminal, failed jobs included; running out of attempts is an ErrTimeout.
func (uc *TrackJobUseCase) Track(ctx context.Context, repoID, jobID int64, onUpdate func(domain.IndexJob)) (domain.IndexJob, error) {
	var last domain.IndexJob

	for attempt := 1; attempt <= uc.maxAttempts; attempt++ {
		job, err := uc.jobs.IndexStatus(ctx, repoID, jobID)
		if err != nil {
			uc.metrics.ObservePollAttempts("error", attempt)
			return last, fmt.Errorf("poll index job: %w", err)
		}

		last = job
		if onUpdate != nil {
			onUpdate(job)
		}
		if job.State.Terminal() {
			uc.metrics.ObservePollAttempts(string(job.State), attempt)
			return job, nil
		}
		if attempt == uc.maxAttempts {
			break
		}

		timer := time.NewTimer(uc.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			uc.metrics.ObservePollAttempts("cancelled", attempt)
			return last, domain.WrapError(abandonKind(ctx), "track index job", ctx.Err())
		case <-timer.C:
		}
	}

	uc.metrics.ObservePollAttempts("timeout", uc.maxAttempts)
	return last, domain.WrapError(domain.ErrTimeout, "track index job",
		fmt.Errorf("no terminal state after %d attempts", uc.maxAttempts))
}

func abandonKind(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout
	}
	return domain.ErrCancelled
}
