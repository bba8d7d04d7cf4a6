package store

import (
	"sort"
	"sync"
	"time"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
)

// MemoryStore keeps the live-state map: an entry exists iff the event is LIVE.
// Every mutation is a single critical section, so insert-if-absent and remove-if-present are atomic.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]events.Event
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]events.Event),
	}
}

// Activate inserts a LIVE event stamped at, or refreshes LastUpdated when it is already live.
// It reports whether the event was newly inserted. Refreshed timestamps always move forward,
// even when at does not.
func (s *MemoryStore) Activate(id string, at time.Time) (events.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.events[id]; ok {
		if !at.After(current.LastUpdated) {
			at = current.LastUpdated.Add(time.Nanosecond)
		}
		current.LastUpdated = at
		s.events[id] = current
		return current, false
	}

	ev := events.Event{EventID: id, Status: events.StatusLive, LastUpdated: at}
	s.events[id] = ev
	return ev, true
}

// Remove deletes the event and reports whether it was present.
func (s *MemoryStore) Remove(id string) (events.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if ok {
		delete(s.events, id)
	}
	return ev, ok
}

// Get retrieves an event by ID.
func (s *MemoryStore) Get(id string) (events.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	return ev, ok
}

// List returns a copy of the live events ordered by ID.
func (s *MemoryStore) List() []events.Event {
	s.mu.RLock()
	result := make([]events.Event, 0, len(s.events))
	for _, ev := range s.events {
		result = append(result, ev)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].EventID < result[j].EventID })
	return result
}

// Len returns the number of live events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
