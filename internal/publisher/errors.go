package publisher

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is the cause when Publish is called after Close.
	ErrClosed = errors.New("publisher closed")
	// ErrQueueFull is the cause when the event's lane has no free slot.
	ErrQueueFull = errors.New("publish queue full")
)

// PublishError reports a message that did not reach the stream.
type PublishError struct {
	EventID string
	Topic   string
	Cause   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish event %s to %s: %v", e.EventID, e.Topic, e.Cause)
}

func (e *PublishError) Unwrap() error {
	return e.Cause
}
