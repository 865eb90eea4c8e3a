package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
	"github.com/mkorchagin/coderag-client/internal/core/ports"
	"github.com/mkorchagin/coderag-client/internal/observability/metrics"
)

// SearchSession coalesces keystrokes into backend searches. Query edits are
// debounced; mode, filter and page changes execute immediately. Responses
// apply newest-wins: a slow older request can never overwrite the results
// of a newer one, regardless of completion order.
type SearchSession struct {
	client ports.SearchClient
	repoID int64

	debounce time.Duration
	perPage  int

	onResults func(domain.SearchPage)
	onError   func(message string)
	metrics   *metrics.ClientMetrics

	parent context.Context

	mu          sync.Mutex
	query       string
	mode        domain.SearchMode
	filters     domain.SearchFilters
	page        int
	generation  uint64
	debounceSeq uint64
	pending     *time.Timer
	cancel      context.CancelFunc
	current     domain.SearchPage
	lastErr     error
	closed      bool
}

type SearchSessionOptions struct {
	Debounce  time.Duration
	PageSize  int
	Mode      domain.SearchMode
	Filters   domain.SearchFilters
	OnResults func(domain.SearchPage)
	OnError   func(message string)
	Metrics   *metrics.ClientMetrics
}

func NewSearchSession(ctx context.Context, client ports.SearchClient, repoID int64, options SearchSessionOptions) *SearchSession {
	debounce := options.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	mode := options.Mode
	if mode == "" {
		mode = domain.ModeAuto
	}
	filters := options.Filters
	if filters == (domain.SearchFilters{}) {
		filters = domain.SearchFilters{Branch: "main", IncludeTests: true}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return &SearchSession{
		client:    client,
		repoID:    repoID,
		debounce:  debounce,
		perPage:   pageSize,
		onResults: options.OnResults,
		onError:   options.OnError,
		metrics:   options.Metrics,
		parent:    ctx,
		mode:      mode,
		filters:   filters,
		page:      1,
	}
}

// SetQuery records the new text and schedules a debounced execution. An
// empty query cancels whatever is pending and clears the results instead
// of hitting the backend.
func (s *SearchSession) SetQuery(query string) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.query = query
	s.page = 1
	s.stopDebounceLocked()

	if query == "" {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.generation++
		s.current = domain.SearchPage{}
		s.lastErr = nil
		notify := s.onResults
		s.mu.Unlock()
		if notify != nil {
			notify(domain.SearchPage{})
		}
		return
	}

	seq := s.debounceSeq
	s.pending = time.AfterFunc(s.debounce, func() {
		s.debounceFired(seq)
	})
	s.mu.Unlock()
}

// SetMode switches the search mode, resets to the first page and executes
// immediately.
func (s *SearchSession) SetMode(mode domain.SearchMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.mode = mode
	s.page = 1
	s.stopDebounceLocked()
	s.executeLocked()
}

// SetFilters replaces the filters, resets to the first page and executes
// immediately.
func (s *SearchSession) SetFilters(filters domain.SearchFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.filters = filters
	s.page = 1
	s.stopDebounceLocked()
	s.executeLocked()
}

// SetPage navigates within the current result set. Page turns bypass the
// debounce window.
func (s *SearchSession) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.page = page
	s.stopDebounceLocked()
	s.executeLocked()
}

// Refresh re-runs the current query immediately.
func (s *SearchSession) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopDebounceLocked()
	s.executeLocked()
}

// Current returns the last applied page and the error that settled it, if
// any.
func (s *SearchSession) Current() (domain.SearchPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.lastErr
}

// Close cancels the pending debounce and any in-flight request. The
// session accepts no further work afterwards.
func (s *SearchSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopDebounceLocked()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *SearchSession) stopDebounceLocked() {
	s.debounceSeq++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *SearchSession) debounceFired(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.debounceSeq {
		return
	}
	s.pending = nil
	s.executeLocked()
}

// executeLocked starts one generation. The previous in-flight request, if
// any, is cancelled and its late result discarded by the generation check.
func (s *SearchSession) executeLocked() {
	if s.closed || s.query == "" {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation

	req := domain.SearchRequest{
		RepoID:  s.repoID,
		Query:   s.query,
		Mode:    s.mode,
		Filters: s.filters,
		Page:    s.page,
		PerPage: s.perPage,
	}
	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel

	go s.run(ctx, gen, req)
}

func (s *SearchSession) run(ctx context.Context, gen uint64, req domain.SearchRequest) {
	page, err := s.client.Search(ctx, req)

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		s.metrics.RecordSearchOutcome("stale")
		return
	}

	if err != nil {
		s.current = domain.SearchPage{}
		s.lastErr = err
		notify := s.onError
		s.mu.Unlock()
		s.metrics.RecordSearchOutcome("error")
		if notify != nil && !domain.IsKind(err, domain.ErrCancelled) {
			notify(domain.ExtractMessage(err))
		}
		return
	}

	s.current = page
	s.lastErr = nil
	notify := s.onResults
	s.mu.Unlock()
	s.metrics.RecordSearchOutcome("applied")
	if notify != nil {
		notify(page)
	}
}
