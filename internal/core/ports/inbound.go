package ports

import (
	"context"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
)

// JobTracker is the inbound contract for following one index job until it
// reaches a terminal state.
type JobTracker interface {
	Track(ctx context.Context, repoID, jobID int64, onUpdate func(domain.IndexJob)) (domain.IndexJob, error)
}

// QuerySession is the inbound contract of the debounced search executor.
type QuerySession interface {
	SetQuery(query string)
	SetMode(mode domain.SearchMode)
	SetFilters(filters domain.SearchFilters)
	SetPage(page int)
	Refresh()
	Current() (domain.SearchPage, error)
	Close()
}

// ChatStreamer is the inbound contract of one streaming chat session.
type ChatStreamer interface {
	Ask(ctx context.Context, req domain.ChatRequest) error
	Cancel()
	State() domain.SessionState
	Answer() string
}
