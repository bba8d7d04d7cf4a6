package teststubs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
)

// StubFetcher is a test double for scores.Fetcher.
type StubFetcher struct {
	Score  string
	Err    error
	Panic  any
	Calls  atomic.Int32
	Notify chan struct{}
}

// Fetch returns the configured score or error while tracking calls. Notify is closed on the first call.
func (s *StubFetcher) Fetch(ctx context.Context, eventID string) (events.FetchResult, error) {
	_ = ctx
	if s.Notify != nil {
		select {
		case <-s.Notify:
		default:
			close(s.Notify)
		}
	}
	s.Calls.Add(1)
	if s.Panic != nil {
		panic(s.Panic)
	}
	if s.Err != nil {
		return events.FetchResult{}, s.Err
	}
	return events.FetchResult{EventID: eventID, CurrentScore: s.Score}, nil
}

// StubPublisher records every result handed to Publish.
type StubPublisher struct {
	mu        sync.Mutex
	Published []events.FetchResult
}

// Publish records the result.
func (p *StubPublisher) Publish(result events.FetchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Published = append(p.Published, result)
}

// Results returns a copy of the recorded results.
func (p *StubPublisher) Results() []events.FetchResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.FetchResult, len(p.Published))
	copy(out, p.Published)
	return out
}
