package ragapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
)

func TestAPITimeParsesZonelessTimestamps(t *testing.T) {
	var parsed apiTime
	if err := json.Unmarshal([]byte(`"2026-08-20T14:03:21.123456"`), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := time.Date(2026, 8, 20, 14, 3, 21, 123456000, time.UTC)
	if !parsed.Time.Equal(want) {
		t.Fatalf("parsed %v, want %v", parsed.Time, want)
	}
}

func TestAPITimeParsesRFC3339(t *testing.T) {
	var parsed apiTime
	if err := json.Unmarshal([]byte(`"2026-08-20T14:03:21Z"`), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Time.IsZero() {
		t.Fatalf("expected non-zero time")
	}
}

func TestAPITimeNullIsZero(t *testing.T) {
	var parsed apiTime
	if err := json.Unmarshal([]byte(`null`), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !parsed.Time.IsZero() {
		t.Fatalf("expected zero time, got %v", parsed.Time)
	}
}

func TestAPITimeRejectsGarbage(t *testing.T) {
	var parsed apiTime
	if err := json.Unmarshal([]byte(`"yesterday"`), &parsed); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFlexibleIDShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{name: "number", raw: `42`, want: 42},
		{name: "numeric string", raw: `"42"`, want: 42},
		{name: "float", raw: `42.0`, want: 42},
		{name: "null", raw: `null`, want: domain.UnknownFileID},
		{name: "empty string", raw: `""`, want: domain.UnknownFileID},
		{name: "garbage", raw: `"n/a"`, want: domain.UnknownFileID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id flexibleID
			if err := json.Unmarshal([]byte(tt.raw), &id); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.raw, err)
			}
			if got := id.orUnknown(); got != tt.want {
				t.Fatalf("orUnknown() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFlexibleIDMissingField(t *testing.T) {
	var wire struct {
		FileID flexibleID `json:"file_id"`
	}
	if err := json.Unmarshal([]byte(`{}`), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := wire.FileID.orUnknown(); got != domain.UnknownFileID {
		t.Fatalf("expected sentinel for absent field, got %d", got)
	}
}

func TestLinesStringShapes(t *testing.T) {
	if got := linesString(json.RawMessage(`"45-67"`)); got != "45-67" {
		t.Fatalf("string form: %q", got)
	}
	if got := linesString(json.RawMessage(`120`)); got != "120" {
		t.Fatalf("number form: %q", got)
	}
	if got := linesString(nil); got != "" {
		t.Fatalf("absent form: %q", got)
	}
	if got := linesString(json.RawMessage(`null`)); got != "" {
		t.Fatalf("null form: %q", got)
	}
}
