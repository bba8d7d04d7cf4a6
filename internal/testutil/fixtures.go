package testutil

import (
	"time"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
)

// SampleEvent returns a live event fixture with the provided id.
func SampleEvent(id string, at time.Time) events.Event {
	return events.Event{
		EventID:     id,
		Status:      events.StatusLive,
		LastUpdated: at,
	}
}

// SampleFetchResult returns a fetch result fixture.
func SampleFetchResult(id, score string, at time.Time) events.FetchResult {
	return events.FetchResult{
		EventID:      id,
		CurrentScore: score,
		CapturedAt:   at,
	}
}
