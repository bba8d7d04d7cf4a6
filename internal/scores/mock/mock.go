// Package mock generates random scores for local runs and for the mock score endpoint.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
)

// Name identifies this source in logs and metrics.
const Name = "mock"

// Source returns a random "home:away" score, each side in [0, 9].
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// New creates a mock source seeded from the clock.
func New() *Source {
	return NewWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand creates a mock source with a caller-supplied generator.
func NewWithRand(rng *rand.Rand) *Source {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Source{
		rng: rng,
		now: time.Now,
	}
}

// Score returns a fresh random score.
func (s *Source) Score() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d:%d", s.rng.Intn(10), s.rng.Intn(10))
}

// Fetch implements scores.Fetcher without any network call.
func (s *Source) Fetch(ctx context.Context, eventID string) (events.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return events.FetchResult{}, err
	}
	return events.FetchResult{
		EventID:      eventID,
		CurrentScore: s.Score(),
		CapturedAt:   s.now(),
	}, nil
}
