package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
)

type jobClientFake struct {
	snapshots []domain.IndexJob
	errs      []error
	calls     int
}

func (f *jobClientFake) IndexStatus(context.Context, int64, int64) (domain.IndexJob, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return domain.IndexJob{}, f.errs[i]
	}
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	return f.snapshots[i], nil
}

func runningJob(state domain.JobState, progress float64) domain.IndexJob {
	return domain.IndexJob{JobID: 7, RepoID: 1, State: state, Progress: progress}
}

func TestTrackReportsEverySnapshotThenResolves(t *testing.T) {
	client := &jobClientFake{snapshots: []domain.IndexJob{
		runningJob(domain.JobPending, 0),
		runningJob(domain.JobRunning, 0.3),
		runningJob(domain.JobRunning, 0.8),
		runningJob(domain.JobCompleted, 1),
	}}
	uc := NewTrackJobUseCase(client, time.Millisecond, 10, nil)

	var seen []domain.JobState
	job, err := uc.Track(context.Background(), 1, 7, func(job domain.IndexJob) {
		seen = append(seen, job.State)
	})
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if job.State != domain.JobCompleted {
		t.Fatalf("expected completed job, got %s", job.State)
	}
	if client.calls != 4 {
		t.Fatalf("expected one request per attempt (4), got %d", client.calls)
	}
	if len(seen) != 4 || seen[0] != domain.JobPending || seen[3] != domain.JobCompleted {
		t.Fatalf("unexpected update sequence %v", seen)
	}
}

func TestTrackResolvesFailedJobWithoutError(t *testing.T) {
	failed := runningJob(domain.JobFailed, 0.5)
	failed.ErrorMessage = "clone failed"
	client := &jobClientFake{snapshots: []domain.IndexJob{failed}}
	uc := NewTrackJobUseCase(client, time.Millisecond, 10, nil)

	job, err := uc.Track(context.Background(), 1, 7, nil)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if job.State != domain.JobFailed || job.ErrorMessage != "clone failed" {
		t.Fatalf("expected failed job with message, got %+v", job)
	}
}

func TestTrackAbortsOnTransportError(t *testing.T) {
	cause := &domain.TransportError{Operation: "index status", StatusCode: 502, Status: "502 Bad Gateway"}
	client := &jobClientFake{
		snapshots: []domain.IndexJob{runningJob(domain.JobRunning, 0.1)},
		errs:      []error{nil, cause},
	}
	uc := NewTrackJobUseCase(client, time.Millisecond, 10, nil)

	updates := 0
	_, err := uc.Track(context.Background(), 1, 7, func(domain.IndexJob) { updates++ })
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause preserved, got %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected no retry after failure, got %d calls", client.calls)
	}
	if updates != 1 {
		t.Fatalf("expected 1 update before failure, got %d", updates)
	}
}

func TestTrackTimesOutAfterMaxAttempts(t *testing.T) {
	client := &jobClientFake{snapshots: []domain.IndexJob{runningJob(domain.JobRunning, 0.2)}}
	uc := NewTrackJobUseCase(client, time.Millisecond, 3, nil)

	updates := 0
	last, err := uc.Track(context.Background(), 1, 7, func(domain.IndexJob) { updates++ })
	if !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout kind, got %v", err)
	}
	if client.calls != 3 || updates != 3 {
		t.Fatalf("expected 3 attempts and 3 updates, got %d/%d", client.calls, updates)
	}
	if last.State != domain.JobRunning {
		t.Fatalf("expected last snapshot returned, got %+v", last)
	}
}

func TestTrackStopsWhenCallerCancels(t *testing.T) {
	client := &jobClientFake{snapshots: []domain.IndexJob{runningJob(domain.JobRunning, 0.2)}}
	uc := NewTrackJobUseCase(client, time.Hour, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := uc.Track(ctx, 1, 7, func(domain.IndexJob) { cancel() })
	if !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected cancelled kind, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected no request after cancellation, got %d", client.calls)
	}
}
