package testutil

import (
	"context"

	appevents "github.com/preston-bernstein/live-score-service/internal/app/events"
	"github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/store"
)

// NewEventService builds a lifecycle service on an in-memory store and a StubScheduler, with the
// given ids already LIVE.
func NewEventService(liveIDs ...string) (*appevents.Service, *StubScheduler) {
	sched := NewStubScheduler()
	svc := appevents.NewService(store.NewMemoryStore(), sched, nil, nil, nil)
	for _, id := range liveIDs {
		svc.ApplyStatus(context.Background(), id, events.StatusLive)
	}
	return svc, sched
}
