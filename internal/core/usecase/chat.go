package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
	"github.com/mkorchagin/coderag-client/internal/core/ports"
	"github.com/mkorchagin/coderag-client/internal/observability/logging"
	"github.com/mkorchagin/coderag-client/internal/observability/metrics"
)

// ChatCallbacks are invoked from the Ask goroutine, in wire order. A
// cancelled session stops delivering callbacks at the next event boundary.
type ChatCallbacks struct {
	OnToken   func(token string)
	OnSources func(sources []domain.SourceRef)
	OnDone    func(messageID int64)
	OnError   func(message string)
}

// ChatSession drives one streamed answer through the lifecycle
// idle -> opening -> streaming -> completed/failed/cancelled. A session is
// single use; callers create a fresh one per question.
type ChatSession struct {
	opener    ports.ChatStreamOpener
	callbacks ChatCallbacks
	logger    *slog.Logger
	metrics   *metrics.ClientMetrics

	mu      sync.Mutex
	state   domain.SessionState
	answer  strings.Builder
	sources []domain.SourceRef
	msgID   int64
	cancel  context.CancelFunc
}

func NewChatSession(
	opener ports.ChatStreamOpener,
	callbacks ChatCallbacks,
	logger *slog.Logger,
	m *metrics.ClientMetrics,
) *ChatSession {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ChatSession{
		opener:    opener,
		callbacks: callbacks,
		logger:    logger.With(slog.String("session_id", uuid.NewString())),
		metrics:   m,
		state:     domain.SessionIdle,
	}
}

// Ask validates the question, opens the stream and consumes it until a
// terminal event. It blocks for the life of the stream; run it in its own
// goroutine when the caller needs to stay responsive. Completion and
// cancellation both return nil, every failure returns the settling error.
func (s *ChatSession) Ask(ctx context.Context, req domain.ChatRequest) error {
	const operation = "ask"

	if strings.TrimSpace(req.Question) == "" {
		return domain.WrapError(domain.ErrValidation, operation, errors.New("question must not be empty"))
	}

	s.mu.Lock()
	if s.state != domain.SessionIdle {
		state := s.state
		s.mu.Unlock()
		return domain.WrapError(domain.ErrValidation, operation, fmt.Errorf("session already %s", state))
	}
	s.state = domain.SessionOpening
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	stream, err := s.opener.OpenChatStream(streamCtx, req)
	if err != nil {
		return s.settleFailure(err)
	}
	defer stream.Close()

	s.mu.Lock()
	if s.state != domain.SessionOpening {
		// Cancelled while the request was in flight.
		s.mu.Unlock()
		return nil
	}
	s.state = domain.SessionStreaming
	s.mu.Unlock()

	return s.consume(stream)
}

func (s *ChatSession) consume(stream ports.EventStream) error {
	for {
		event, err := stream.Next()
		if err != nil {
			if domain.IsKind(err, domain.ErrProtocol) {
				// One malformed frame never poisons the stream.
				s.logger.Warn("chat_frame_skipped", slog.String("error", err.Error()))
				continue
			}
			if errors.Is(err, io.EOF) {
				return s.settleFailure(domain.WrapError(domain.ErrProtocol, "chat stream",
					errors.New("stream ended before completion")))
			}
			return s.settleFailure(err)
		}

		switch event.Type {
		case domain.EventToken:
			s.deliverToken(event.Content)
		case domain.EventSources:
			s.deliverSources(event.Sources)
		case domain.EventDone:
			return s.settleDone(event.MessageID)
		case domain.EventError:
			return s.settleRemoteError(event.Content)
		}
	}
}

// Cancel abandons the stream silently: the state flips to cancelled and no
// further callbacks fire. Cancelling an idle or settled session is a no-op.
func (s *ChatSession) Cancel() {
	s.mu.Lock()
	if s.state != domain.SessionOpening && s.state != domain.SessionStreaming {
		s.mu.Unlock()
		return
	}
	s.state = domain.SessionCancelled
	cancel := s.cancel
	s.mu.Unlock()

	s.metrics.RecordStreamOutcome(string(domain.SessionCancelled))
	if cancel != nil {
		cancel()
	}
}

func (s *ChatSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Answer returns the text accumulated so far. After a mid-stream failure
// it still holds the partial answer.
func (s *ChatSession) Answer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer.String()
}

func (s *ChatSession) Sources() []domain.SourceRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources
}

// MessageID returns the persisted message id once the session completed.
func (s *ChatSession) MessageID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgID
}

func (s *ChatSession) deliverToken(token string) {
	s.mu.Lock()
	if s.state != domain.SessionStreaming {
		s.mu.Unlock()
		return
	}
	s.answer.WriteString(token)
	notify := s.callbacks.OnToken
	s.mu.Unlock()
	if notify != nil {
		notify(token)
	}
}

func (s *ChatSession) deliverSources(sources []domain.SourceRef) {
	s.mu.Lock()
	if s.state != domain.SessionStreaming {
		s.mu.Unlock()
		return
	}
	s.sources = sources
	notify := s.callbacks.OnSources
	s.mu.Unlock()
	if notify != nil {
		notify(sources)
	}
}

func (s *ChatSession) settleDone(messageID int64) error {
	s.mu.Lock()
	if s.state != domain.SessionStreaming {
		s.mu.Unlock()
		return nil
	}
	s.state = domain.SessionCompleted
	s.msgID = messageID
	notify := s.callbacks.OnDone
	s.mu.Unlock()

	s.metrics.RecordStreamOutcome(string(domain.SessionCompleted))
	if notify != nil {
		notify(messageID)
	}
	return nil
}

// settleRemoteError handles the backend's explicit error frame. The partial
// answer stays readable.
func (s *ChatSession) settleRemoteError(message string) error {
	err := domain.WrapError(domain.ErrTransport, "chat stream", errors.New(message))

	s.mu.Lock()
	if s.state != domain.SessionStreaming {
		s.mu.Unlock()
		return nil
	}
	s.state = domain.SessionFailed
	notify := s.callbacks.OnError
	s.mu.Unlock()

	s.metrics.RecordStreamOutcome(string(domain.SessionFailed))
	if notify != nil {
		notify(message)
	}
	return err
}

// settleFailure handles open and read failures. A session the caller
// already cancelled settles silently instead.
func (s *ChatSession) settleFailure(err error) error {
	s.mu.Lock()
	if s.state == domain.SessionCancelled {
		s.mu.Unlock()
		return nil
	}
	if s.state.Terminal() {
		s.mu.Unlock()
		return err
	}
	s.state = domain.SessionFailed
	notify := s.callbacks.OnError
	s.mu.Unlock()

	s.metrics.RecordStreamOutcome(string(domain.SessionFailed))
	if notify != nil {
		notify(domain.ExtractMessage(err))
	}
	return err
}
