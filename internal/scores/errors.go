package scores

import (
	"errors"
	"fmt"
	"time"
)

// ErrSourceUnavailable is returned when no upstream source is wired.
var ErrSourceUnavailable = errors.New("score source unavailable")

// FetchError is the terminal failure of a fetch after retries are exhausted.
type FetchError struct {
	EventID  string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("fetch score for event %s failed after %d attempt(s): %v", e.EventID, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("fetch score for event %s failed: %v", e.EventID, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// RateLimitError captures rate limit responses from the upstream source.
type RateLimitError struct {
	Source     string
	StatusCode int
	RetryAfter time.Duration
	Remaining  string
	Message    string
}

func (e *RateLimitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "score source rate limited"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status=%d)", msg, e.StatusCode)
	}
	return msg
}

// AsRateLimitError attempts to unwrap an error into a RateLimitError.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr, true
	}
	return nil, false
}

// AsFetchError attempts to unwrap an error into a FetchError.
func AsFetchError(err error) (*FetchError, bool) {
	var fErr *FetchError
	if errors.As(err, &fErr) {
		return fErr, true
	}
	return nil, false
}
