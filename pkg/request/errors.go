package request

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// NetworkError is a transport-level failure that persisted through all
// retries, including per-attempt timeouts.
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(e.Err, &nerr) {
		return nerr.Timeout()
	}
	return false
}

// StatusError means the final response carried a non-2xx status,
// whether or not the status was retryable.
type StatusError struct {
	URL      string
	Status   int
	Attempts int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d from %s after %d attempt(s)", e.Status, e.URL, e.Attempts)
}
