package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
	"github.com/mkorchagin/coderag-client/internal/core/ports"
)

type streamStep struct {
	event domain.StreamEvent
	err   error
}

type scriptedStream struct {
	steps  []streamStep
	pos    int
	closed bool
	hook   func(pos int)
}

func (s *scriptedStream) Next() (domain.StreamEvent, error) {
	if s.hook != nil {
		s.hook(s.pos)
	}
	if s.pos >= len(s.steps) {
		return domain.StreamEvent{}, io.EOF
	}
	step := s.steps[s.pos]
	s.pos++
	return step.event, step.err
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type openerFake struct {
	stream *scriptedStream
	err    error
	calls  int
	req    domain.ChatRequest
}

func (f *openerFake) OpenChatStream(_ context.Context, req domain.ChatRequest) (ports.EventStream, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type openerFunc func(ctx context.Context, req domain.ChatRequest) (ports.EventStream, error)

func (f openerFunc) OpenChatStream(ctx context.Context, req domain.ChatRequest) (ports.EventStream, error) {
	return f(ctx, req)
}

func tokenEvent(text string) streamStep {
	return streamStep{event: domain.StreamEvent{Type: domain.EventToken, Content: text}}
}

func doneEvent(id int64) streamStep {
	return streamStep{event: domain.StreamEvent{Type: domain.EventDone, MessageID: id}}
}

func TestChatSessionDeliversEventsInOrder(t *testing.T) {
	stream := &scriptedStream{steps: []streamStep{
		tokenEvent("Hello"),
		tokenEvent(" world"),
		{event: domain.StreamEvent{Type: domain.EventSources, Sources: []domain.SourceRef{{FilePath: "pkg/a.go"}}}},
		doneEvent(7),
	}}
	opener := &openerFake{stream: stream}

	var order []string
	session := NewChatSession(opener, ChatCallbacks{
		OnToken:   func(token string) { order = append(order, "token:"+token) },
		OnSources: func(sources []domain.SourceRef) { order = append(order, fmt.Sprintf("sources:%d", len(sources))) },
		OnDone:    func(id int64) { order = append(order, fmt.Sprintf("done:%d", id)) },
		OnError:   func(message string) { t.Fatalf("unexpected error callback: %s", message) },
	}, nil, nil)

	err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 1, Question: "How does auth work?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	want := []string{"token:Hello", "token: world", "sources:1", "done:7"}
	if len(order) != len(want) {
		t.Fatalf("unexpected callback order %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected callback order %v", order)
		}
	}
	if session.State() != domain.SessionCompleted {
		t.Fatalf("expected completed, got %s", session.State())
	}
	if session.Answer() != "Hello world" {
		t.Fatalf("unexpected answer %q", session.Answer())
	}
	if session.MessageID() != 7 {
		t.Fatalf("unexpected message id %d", session.MessageID())
	}
	if !stream.closed {
		t.Fatalf("expected stream closed")
	}
}

func TestChatSessionRejectsEmptyQuestionBeforeOpening(t *testing.T) {
	opener := &openerFake{stream: &scriptedStream{}}
	session := NewChatSession(opener, ChatCallbacks{}, nil, nil)

	err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 1, Question: "   "})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if opener.calls != 0 {
		t.Fatalf("expected no network call, got %d", opener.calls)
	}
	if session.State() != domain.SessionIdle {
		t.Fatalf("expected idle state, got %s", session.State())
	}
}

func TestChatSessionSingleUse(t *testing.T) {
	opener := &openerFake{stream: &scriptedStream{steps: []streamStep{doneEvent(1)}}}
	session := NewChatSession(opener, ChatCallbacks{}, nil, nil)

	if err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 1, Question: "q"}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 1, Question: "again"})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation kind on reuse, got %v", err)
	}
	if opener.calls != 1 {
		t.Fatalf("expected single open, got %d", opener.calls)
	}
}

func TestChatSessionKeepsPartialAnswerOnErrorEvent(t *testing.T) {
	stream := &scriptedStream{steps: []streamStep{
		tokenEvent("Partial"),
		{event: domain.StreamEvent{Type: domain.EventError, Content: "Error: model offline"}},
	}}
	opener := &openerFake{stream: stream}

	var failure string
	session := NewChatSession(opener, ChatCallbacks{
		OnError: func(message string) { failure = message },
	}, nil, nil)

	err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 1, Question: "q"})
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport kind, got %v", err)
	}
	if session.State() != domain.SessionFailed {
		t.Fatalf("expected failed, got %s", session.State())
	}
	if failure != "Error: model offline" {
		t.Fatalf("unexpected error message %q", failure)
	}
	if session.Answer() != "Partial" {
		t.Fatalf("expected partial answer preserved, got %q", session.Answer())
	}
	if !stream.closed {
		t.Fatalf("expected stream closed")
	}
}

func TestChatSessionTruncatedStreamFails(t *testing.T) {
	stream := &scriptedStream{steps: []streamStep{tokenEvent("Half")}}
	opener := &openerFake{stream: stream}

	var failure string
	session := NewChatSession(opener, ChatCallbacks{
		OnError: func(message string) { failure = message },
	}, nil, nil)

	err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 1, Question: "q"})
	if !domain.IsKind(err, domain.ErrProtocol) {
		t.Fatalf("expected protocol kind, got %v", err)
	}
	if session.Answer() != "Half" {
		t.Fatalf("expected partial answer preserved, got %q", session.Answer())
	}
	if failure == "" {
		t.Fatalf("expected error callback")
	}
}

func TestChatSessionSkipsMalformedFrames(t *testing.T) {
	stream := &scriptedStream{steps: []streamStep{
		tokenEvent("ok"),
		{err: domain.WrapError(domain.ErrProtocol, "decode chat frame", errors.New("bad json"))},
		doneEvent(3),
	}}
	opener := &openerFake{stream: stream}

	var tokens []string
	session := NewChatSession(opener, ChatCallbacks{
		OnToken: func(token string) { tokens = append(tokens, token) },
		OnError: func(message string) { t.Fatalf("unexpected error callback: %s", message) },
	}, nil, nil)

	if err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 1, Question: "q"}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if session.State() != domain.SessionCompleted {
		t.Fatalf("expected completed, got %s", session.State())
	}
	if len(tokens) != 1 || tokens[0] != "ok" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
}

func TestChatSessionCancelMidStreamIsSilent(t *testing.T) {
	stream := &scriptedStream{steps: []streamStep{
		tokenEvent("Hi"),
		{err: domain.WrapError(domain.ErrCancelled, "read chat stream", context.Canceled)},
	}}
	var session *ChatSession
	stream.hook = func(pos int) {
		if pos == 1 {
			session.Cancel()
		}
	}
	opener := &openerFake{stream: stream}

	session = NewChatSession(opener, ChatCallbacks{
		OnError: func(message string) { t.Fatalf("unexpected error callback: %s", message) },
	}, nil, nil)

	if err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 1, Question: "q"}); err != nil {
		t.Fatalf("expected silent cancellation, got %v", err)
	}
	if session.State() != domain.SessionCancelled {
		t.Fatalf("expected cancelled, got %s", session.State())
	}
	if session.Answer() != "Hi" {
		t.Fatalf("expected partial answer kept, got %q", session.Answer())
	}
	if !stream.closed {
		t.Fatalf("expected stream closed")
	}
}

func TestChatSessionCancelDuringOpen(t *testing.T) {
	stream := &scriptedStream{steps: []streamStep{tokenEvent("never")}}
	var session *ChatSession
	opener := openerFunc(func(context.Context, domain.ChatRequest) (ports.EventStream, error) {
		session.Cancel()
		return stream, nil
	})

	session = NewChatSession(opener, ChatCallbacks{
		OnToken: func(token string) { t.Fatalf("unexpected token %q", token) },
	}, nil, nil)

	if err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 1, Question: "q"}); err != nil {
		t.Fatalf("expected nil after cancel during open, got %v", err)
	}
	if session.State() != domain.SessionCancelled {
		t.Fatalf("expected cancelled, got %s", session.State())
	}
	if !stream.closed {
		t.Fatalf("expected stream closed even without streaming")
	}
	if stream.pos != 0 {
		t.Fatalf("expected no reads from a cancelled stream, got %d", stream.pos)
	}
}

func TestChatSessionOpenFailureSettlesFailed(t *testing.T) {
	opener := &openerFake{err: &domain.TransportError{
		Operation:  "ask",
		StatusCode: 404,
		Status:     "404 Not Found",
		Body:       `{"detail":"Repository not found"}`,
	}}

	var failure string
	session := NewChatSession(opener, ChatCallbacks{
		OnError: func(message string) { failure = message },
	}, nil, nil)

	err := session.Ask(context.Background(), domain.ChatRequest{RepoID: 9, Question: "q"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if session.State() != domain.SessionFailed {
		t.Fatalf("expected failed, got %s", session.State())
	}
	if failure != "Repository not found" {
		t.Fatalf("expected backend detail surfaced, got %q", failure)
	}
}
