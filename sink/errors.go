package sink

import (
	"errors"
	"fmt"
)

var (
	// ErrSinkRequired is returned when a Deliverer is built without a sink.
	ErrSinkRequired = errors.New("sink is required")

	// ErrQueueRequired is returned when the dead-letter strategy has no queue.
	ErrQueueRequired = errors.New("dead-letter queue is required")

	// ErrUnknownStrategy is returned when parsing an unrecognized strategy name.
	ErrUnknownStrategy = errors.New("unknown failure strategy")

	// ErrDeliveryFailed marks a batch that could not be delivered under the
	// abort strategy.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrUnexpectedStatus indicates the index answered with a non-success status.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// StatusError reports a non-success HTTP response from the index.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrUnexpectedStatus, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
