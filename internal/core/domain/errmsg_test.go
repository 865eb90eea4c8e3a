package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestExtractMessageBodyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "validation list joins field and message",
			body: `{"detail":[{"loc":["body","question"],"msg":"field required","type":"missing"},{"loc":["query","page"],"msg":"must be positive"}]}`,
			want: "question: field required; page: must be positive",
		},
		{
			name: "validation loc keeps nested segments",
			body: `{"detail":[{"loc":["body","filters",0,"lang"],"msg":"unknown language"}]}`,
			want: "filters.0.lang: unknown language",
		},
		{
			name: "validation loc with single segment falls back to field",
			body: `{"detail":[{"loc":["body"],"msg":"invalid"}]}`,
			want: "field: invalid",
		},
		{
			name: "validation item without loc falls back to field",
			body: `{"detail":[{"msg":"broken"}]}`,
			want: "field: broken",
		},
		{
			name: "string detail",
			body: `{"detail":"Repository not found"}`,
			want: "Repository not found",
		},
		{
			name: "object detail with message",
			body: `{"detail":{"message":"index job already running"}}`,
			want: "index job already running",
		},
		{
			name: "object detail with msg",
			body: `{"detail":{"msg":"bad branch"}}`,
			want: "bad branch",
		},
		{
			name: "object detail without known keys is serialized",
			body: `{"detail":{"code":42}}`,
			want: `{"code":42}`,
		},
		{
			name: "top level message",
			body: `{"message":"service warming up"}`,
			want: "service warming up",
		},
		{
			name: "top level msg",
			body: `{"msg":"try again"}`,
			want: "try again",
		},
		{
			name: "object without known keys is serialized",
			body: `{"status":"degraded"}`,
			want: `{"status":"degraded"}`,
		},
		{
			name: "json string body",
			body: `"plain failure"`,
			want: "plain failure",
		},
		{
			name: "plain text body passes through",
			body: "upstream exploded",
			want: "upstream exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &TransportError{Operation: "search", StatusCode: 500, Status: "500 Internal Server Error", Body: tt.body}
			if got := ExtractMessage(err); got != tt.want {
				t.Fatalf("ExtractMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractMessageNilError(t *testing.T) {
	if got := ExtractMessage(nil); got != unknownErrorMessage {
		t.Fatalf("ExtractMessage(nil) = %q", got)
	}
}

func TestExtractMessagePlainError(t *testing.T) {
	if got := ExtractMessage(errors.New("dial tcp: connection refused")); got != "dial tcp: connection refused" {
		t.Fatalf("ExtractMessage() = %q", got)
	}
}

func TestExtractMessageEmptyErrorText(t *testing.T) {
	if got := ExtractMessage(errors.New("  ")); got != unknownErrorMessage {
		t.Fatalf("ExtractMessage() = %q, want fallback", got)
	}
}

func TestExtractMessageEmptyBodyUsesErrorText(t *testing.T) {
	err := &TransportError{Operation: "health", StatusCode: 503, Status: "503 Service Unavailable"}
	got := ExtractMessage(err)
	if got != err.Error() {
		t.Fatalf("ExtractMessage() = %q, want %q", got, err.Error())
	}
}

func TestExtractMessageArrayBodyFallsBack(t *testing.T) {
	err := &TransportError{Operation: "search", StatusCode: 500, Status: "500 Internal Server Error", Body: `[1,2,3]`}
	if got := ExtractMessage(err); got != err.Error() {
		t.Fatalf("ExtractMessage() = %q, want error text", got)
	}
}

func TestExtractMessageFindsWrappedTransportError(t *testing.T) {
	inner := &TransportError{Operation: "ask", StatusCode: 404, Status: "404 Not Found", Body: `{"detail":"Repository not found"}`}
	wrapped := fmt.Errorf("start chat: %w", inner)
	if got := ExtractMessage(wrapped); got != "Repository not found" {
		t.Fatalf("ExtractMessage() = %q", got)
	}
}
