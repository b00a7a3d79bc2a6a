package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by a JobStore when no row has the requested id.
	ErrNotFound = errors.New("job not found")

	// ErrIntegrity is returned when a record or row cannot be trusted:
	// a missing id, or a stored row whose shape does not match the schema.
	ErrIntegrity = errors.New("job record integrity violation")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
