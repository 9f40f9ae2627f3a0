package ai

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatus indicates the embedding service answered with a non-success status.
var ErrUnexpectedStatus = errors.New("unexpected embedding service status")

// StatusError carries the HTTP status and body of a failed embedding call.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d: %s", ErrUnexpectedStatus, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
