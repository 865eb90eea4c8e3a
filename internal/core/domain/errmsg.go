package domain

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

const unknownErrorMessage = "an unknown error occurred"

// ExtractMessage reduces any error produced by this layer to a single
// human-readable string. It understands the backend's FastAPI-style bodies
// (detail as string, validation list, or nested object; top-level message)
// and falls back to the error text itself. Total: never panics, never
// returns an empty string.
func ExtractMessage(err error) string {
	if err == nil {
		return unknownErrorMessage
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) && transportErr != nil {
		if msg := messageFromBody(transportErr.Body); msg != "" {
			return msg
		}
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unknownErrorMessage
}

func messageFromBody(body string) string {
	raw := strings.TrimSpace(body)
	if raw == "" {
		return ""
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		// Plain-text error bodies pass through as-is.
		return raw
	}

	switch value := decoded.(type) {
	case string:
		return strings.TrimSpace(value)
	case map[string]any:
		return messageFromObject(value)
	default:
		// Arrays, numbers and nulls carry no message; the caller falls
		// back to the error text.
		return ""
	}
}

func messageFromObject(obj map[string]any) string {
	if detail, ok := obj["detail"]; ok {
		if msg := messageFromDetail(detail); msg != "" {
			return msg
		}
	}
	if msg, ok := stringField(obj, "message"); ok {
		return msg
	}
	if msg, ok := stringField(obj, "msg"); ok {
		return msg
	}
	return compactJSON(obj)
}

func messageFromDetail(detail any) string {
	switch value := detail.(type) {
	case string:
		return strings.TrimSpace(value)
	case []any:
		return joinValidationItems(value)
	case map[string]any:
		if msg, ok := stringField(value, "message"); ok {
			return msg
		}
		if msg, ok := stringField(value, "msg"); ok {
			return msg
		}
		return compactJSON(value)
	default:
		return ""
	}
}

// joinValidationItems renders a FastAPI validation list as
// "<field>: <msg>; <field>: <msg>".
func joinValidationItems(items []any) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		msg, ok := stringField(entry, "msg")
		if !ok {
			continue
		}
		parts = append(parts, validationLocation(entry["loc"])+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// validationLocation drops the leading segment ("body", "query", ...) and
// dot-joins the rest, so callers see "question" instead of "body.question".
func validationLocation(loc any) string {
	segments, ok := loc.([]any)
	if !ok || len(segments) <= 1 {
		return "field"
	}

	parts := make([]string, 0, len(segments)-1)
	for _, segment := range segments[1:] {
		switch v := segment.(type) {
		case string:
			parts = append(parts, v)
		case float64:
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	if len(parts) == 0 {
		return "field"
	}
	return strings.Join(parts, ".")
}

func stringField(obj map[string]any, key string) (string, bool) {
	value, ok := obj[key].(string)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

func compactJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil || len(encoded) == 0 {
		return ""
	}
	return string(encoded)
}
