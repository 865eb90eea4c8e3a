package ragapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
	"github.com/mkorchagin/coderag-client/internal/observability/metrics"
)

// ChatStream decodes the backend's event-stream framing: one JSON object
// per "data:" line, blank lines between frames. Reading is byte-oriented,
// so multi-byte runes split across network chunks reassemble correctly.
type ChatStream struct {
	body    io.ReadCloser
	reader  *bufio.Reader
	logger  *slog.Logger
	metrics *metrics.ClientMetrics

	closeOnce sync.Once
	closeErr  error
}

func newChatStream(body io.ReadCloser, logger *slog.Logger, m *metrics.ClientMetrics) *ChatStream {
	return &ChatStream{
		body:    body,
		reader:  bufio.NewReader(body),
		logger:  logger,
		metrics: m,
	}
}

// Next returns the next decoded event in wire order. A frame that fails to
// decode comes back as an ErrProtocol error and the stream stays readable;
// io.EOF means the body ended.
func (s *ChatStream) Next() (domain.StreamEvent, error) {
	for {
		line, err := s.reader.ReadString('\n')

		// A final frame without a trailing newline still counts.
		if payload, ok := framePayload(line); ok {
			event, decodeErr := decodeFrame(payload)
			if decodeErr != nil {
				s.metrics.RecordStreamEvent("malformed")
				s.logger.Warn("chat_frame_malformed", slog.String("error", decodeErr.Error()))
				return domain.StreamEvent{}, domain.WrapError(domain.ErrProtocol, "decode chat frame", decodeErr)
			}
			s.metrics.RecordStreamEvent(string(event.Type))
			return event, nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return domain.StreamEvent{}, io.EOF
			}
			return domain.StreamEvent{}, domain.WrapError(domain.ErrTransport, "read chat stream", err)
		}
	}
}

// Close releases the underlying body. Safe to call more than once and from
// a different goroutine than Next.
func (s *ChatStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// framePayload extracts the JSON payload of a data line. Blank separators,
// comments and other event-stream fields are not frames.
func framePayload(line string) (string, bool) {
	trimmed := strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(trimmed, "data:") {
		return "", false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
	if payload == "" {
		return "", false
	}
	return payload, true
}

type wireEvent struct {
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
	MessageID *int64          `json:"message_id"`
}

func decodeFrame(payload string) (domain.StreamEvent, error) {
	var wire wireEvent
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return domain.StreamEvent{}, fmt.Errorf("frame is not valid json: %w", err)
	}

	switch domain.EventType(wire.Type) {
	case domain.EventToken:
		content, err := stringContent(wire.Content)
		if err != nil {
			return domain.StreamEvent{}, fmt.Errorf("token frame: %w", err)
		}
		return domain.StreamEvent{Type: domain.EventToken, Content: content}, nil

	case domain.EventSources:
		var refs []wireSourceRef
		if err := json.Unmarshal(wire.Content, &refs); err != nil {
			return domain.StreamEvent{}, fmt.Errorf("sources frame: %w", err)
		}
		return domain.StreamEvent{Type: domain.EventSources, Sources: sourceRefsToDomain(refs)}, nil

	case domain.EventDone:
		event := domain.StreamEvent{Type: domain.EventDone}
		if wire.MessageID != nil {
			event.MessageID = *wire.MessageID
		}
		return event, nil

	case domain.EventError:
		content, err := stringContent(wire.Content)
		if err != nil {
			return domain.StreamEvent{}, fmt.Errorf("error frame: %w", err)
		}
		return domain.StreamEvent{Type: domain.EventError, Content: content}, nil

	default:
		return domain.StreamEvent{}, fmt.Errorf("unknown event type %q", wire.Type)
	}
}

func stringContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("missing content")
	}
	var content string
	if err := json.Unmarshal(raw, &content); err != nil {
		return "", err
	}
	return content, nil
}
