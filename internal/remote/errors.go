package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is wrapped by every delegate failure. Callers treat it as
	// "no remote verdict" and fall back to local classification.
	ErrUnavailable = errors.New("remote: classifier unavailable")

	errTimeout   = fmt.Errorf("%w: timeout", ErrUnavailable)
	errQueueFull = fmt.Errorf("%w: queue full", ErrUnavailable)
	errClosed    = fmt.Errorf("%w: delegate closed", ErrUnavailable)
)

// APIError represents a non-2xx response from the remote classifier.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("remote: API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true for rate limiting and server-side errors.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}
