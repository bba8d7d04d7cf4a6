package scores

import (
	"context"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
)

// Fetcher retrieves the current score for one event from an upstream source.
type Fetcher interface {
	Fetch(ctx context.Context, eventID string) (events.FetchResult, error)
}

// FetcherFunc adapts a function into a Fetcher.
type FetcherFunc func(ctx context.Context, eventID string) (events.FetchResult, error)

func (f FetcherFunc) Fetch(ctx context.Context, eventID string) (events.FetchResult, error) {
	return f(ctx, eventID)
}
