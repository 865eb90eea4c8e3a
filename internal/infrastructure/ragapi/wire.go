package ragapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
)

// apiTime decodes both RFC 3339 timestamps and the backend's zoneless
// "2006-01-02T15:04:05" form, which plain time.Time rejects.
type apiTime struct {
	time.Time
}

var apiTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func (t *apiTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		t.Time = time.Time{}
		return nil
	}

	value, err := strconv.Unquote(raw)
	if err != nil {
		return err
	}
	for _, layout := range apiTimeLayouts {
		parsed, perr := time.Parse(layout, value)
		if perr == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", value)
}

func apiTimeValue(t *apiTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}

// flexibleID tolerates file identifiers arriving as numbers, numeric
// strings, null or nothing at all. Anything unparsable stays invalid
// instead of failing the whole page.
type flexibleID struct {
	value int64
	valid bool
}

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		f.value = n
		f.valid = true
		return nil
	}
	if fl, err := strconv.ParseFloat(raw, 64); err == nil {
		f.value = int64(fl)
		f.valid = true
	}
	return nil
}

func (f flexibleID) orUnknown() int64 {
	if !f.valid {
		return domain.UnknownFileID
	}
	return f.value
}

type wireSourceRef struct {
	FilePath       string          `json:"file_path"`
	Language       string          `json:"language"`
	RelevanceScore float64         `json:"relevance_score"`
	Lines          json.RawMessage `json:"lines"`
}

func (w wireSourceRef) toDomain() domain.SourceRef {
	return domain.SourceRef{
		FilePath:       w.FilePath,
		Language:       w.Language,
		RelevanceScore: w.RelevanceScore,
		Lines:          linesString(w.Lines),
	}
}

func sourceRefsToDomain(refs []wireSourceRef) []domain.SourceRef {
	out := make([]domain.SourceRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.toDomain())
	}
	return out
}

// linesString renders the "lines" field, which the backend emits as either
// a string ("45-67") or a bare number.
func linesString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if unquoted, err := strconv.Unquote(trimmed); err == nil {
		return strings.TrimSpace(unquoted)
	}
	return trimmed
}

func strOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func floatOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func intOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
