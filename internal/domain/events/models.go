package events

import (
	"strings"
	"time"
)

// Status is the lifecycle state requested for an event.
type Status string

const (
	StatusLive    Status = "LIVE"
	StatusNotLive Status = "NOT_LIVE"
)

// ParseStatus maps a wire value onto a known Status. Matching ignores case and surrounding space.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(StatusLive):
		return StatusLive, true
	case string(StatusNotLive):
		return StatusNotLive, true
	default:
		return "", false
	}
}

// Event is the tracked state of one live event. Only LIVE events are ever stored.
type Event struct {
	EventID     string    `json:"eventId"`
	Status      Status    `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// FetchResult is a score captured from the external source. It lives only between fetch and publish.
type FetchResult struct {
	EventID      string    `json:"eventId"`
	CurrentScore string    `json:"currentScore"`
	CapturedAt   time.Time `json:"-"`
}

// Message is the body written to the downstream stream.
// Timestamp is epoch milliseconds taken when the message is published.
type Message struct {
	EventID      string `json:"eventId"`
	CurrentScore string `json:"currentScore"`
	Timestamp    int64  `json:"timestamp"`
}

// NewMessage builds a Message for result stamped with publishedAt.
func NewMessage(result FetchResult, publishedAt time.Time) Message {
	return Message{
		EventID:      result.EventID,
		CurrentScore: result.CurrentScore,
		Timestamp:    publishedAt.UnixMilli(),
	}
}
