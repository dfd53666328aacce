package backend

import (
	"errors"
	"fmt"

	"ContentLocalizer/internal/domain"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound     = fmt.Errorf("backend: %w", domain.ErrNotFound)
	ErrUnauthorized = errors.New("backend: not authorized")
	ErrRejected     = errors.New("backend: request rejected")
	ErrUpstream     = errors.New("backend: internal error (5xx)")
	ErrUnavailable  = errors.New("backend: host unreachable or transport failure")
	ErrBadResponse  = errors.New("backend: invalid response format")
)

// APIError wraps a sentinel with the operation and HTTP details that produced it.
type APIError struct {
	Sentinel error
	Op       string
	Status   int
	Body     string
	Err      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the lower-level cause.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

func sentinelForStatus(status int) error {
	switch {
	case status == 404:
		return ErrNotFound
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status >= 500:
		return ErrUpstream
	default:
		return ErrRejected
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
