package scheduler

import (
	"errors"
	"fmt"
)

// ErrClosed is wrapped by StateError once the scheduler has been shut down.
var ErrClosed = errors.New("scheduler closed")

// StateError reports an operation the scheduler refused because of its lifecycle state.
type StateError struct {
	Op      string
	EventID string
	Err     error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("scheduler %s %s: %v", e.Op, e.EventID, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}
