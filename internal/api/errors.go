package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Sentinel errors distinguishing failure causes. They drive toast wording
// only; the rollback path is identical for every submission failure.
var (
	// ErrUnauthorized indicates the auth cookie/session expired.
	ErrUnauthorized = errors.New("authentication required")

	// ErrNotConfigured indicates the resolved provider has no API key.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// HTTPError is a non-2xx response from the boundary that does not map to a
// sentinel error.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}

// IsTimeout reports whether err represents a client-side timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// responseError maps a non-2xx response to an error.
func responseError(statusCode int, message string) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case strings.Contains(strings.ToLower(message), "not configured"):
		return fmt.Errorf("%w: %s", ErrNotConfigured, message)
	default:
		return &HTTPError{StatusCode: statusCode, Message: message}
	}
}
