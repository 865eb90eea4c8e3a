package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("invalid input")
	ErrTransport  = errors.New("transport failure")
	ErrProtocol   = errors.New("protocol violation")
	ErrTimeout    = errors.New("timed out")
	ErrCancelled  = errors.New("cancelled")
	ErrTemporary  = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// TransportError carries a non-success backend response: the status line
// plus the raw body, so ExtractMessage can surface the backend's own text.
type TransportError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *TransportError) Error() string {
	if e == nil {
		return "coderag status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("coderag %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("coderag %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// Unwrap ties every status failure to the ErrTransport kind, so IsKind
// works without an extra wrapping layer.
func (e *TransportError) Unwrap() error {
	return ErrTransport
}
