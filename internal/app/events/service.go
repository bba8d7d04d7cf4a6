package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	domainevents "github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/logging"
	"github.com/preston-bernstein/live-score-service/internal/metrics"
	"github.com/preston-bernstein/live-score-service/internal/scheduler"
)

const lockStripes = 64

// Transition describes what ApplyStatus did.
type Transition string

const (
	TransitionStarted   Transition = "started"
	TransitionRefreshed Transition = "refreshed"
	TransitionStopped   Transition = "stopped"
	TransitionUnchanged Transition = "unchanged"
	TransitionRejected  Transition = "rejected"
)

// Applied reports whether the transition changed state.
func (t Transition) Applied() bool {
	return t == TransitionStarted || t == TransitionRefreshed || t == TransitionStopped
}

// Store holds the live-state map. An event is present iff it is LIVE.
type Store interface {
	Activate(id string, at time.Time) (domainevents.Event, bool)
	Remove(id string) (domainevents.Event, bool)
	Get(id string) (domainevents.Event, bool)
	List() []domainevents.Event
}

// Scheduler owns the recurring per-event tasks.
type Scheduler interface {
	Start(eventID string, action scheduler.Action) error
	Stop(eventID string) bool
}

// ActionFactory builds the recurring poll action for an event.
type ActionFactory func(eventID string) scheduler.Action

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the clock used for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the event lifecycle manager. It keeps the live-state map and the scheduler's task
// registry in step: a task exists exactly while its event is LIVE.
type Service struct {
	store     Store
	scheduler Scheduler
	actions   ActionFactory
	logger    *slog.Logger
	recorder  *metrics.Recorder
	now       func() time.Time

	locks [lockStripes]sync.Mutex
}

// NewService constructs a Service. A nil actions factory schedules no-op tasks.
func NewService(store Store, sched Scheduler, actions ActionFactory, logger *slog.Logger, recorder *metrics.Recorder, opts ...Option) *Service {
	if actions == nil {
		actions = func(string) scheduler.Action {
			return func(context.Context) {}
		}
	}
	s := &Service{
		store:     store,
		scheduler: sched,
		actions:   actions,
		logger:    logger,
		recorder:  recorder,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyStatus moves eventID to status and starts or stops its polling task to match.
// It never fails the caller; problems are logged and reported as TransitionRejected.
func (s *Service) ApplyStatus(ctx context.Context, eventID string, status domainevents.Status) Transition {
	logger := logging.OrDiscard(logging.FromContext(ctx, s.logger)).With(
		slog.String(logging.FieldEventID, eventID),
		slog.String(logging.FieldEventStatus, string(status)),
	)

	lock := s.lockFor(eventID)
	lock.Lock()
	defer lock.Unlock()

	var transition Transition
	switch status {
	case domainevents.StatusLive:
		transition = s.activate(logger, eventID)
	case domainevents.StatusNotLive:
		transition = s.deactivate(logger, eventID)
	default:
		logger.Warn("unknown event status ignored")
		transition = TransitionRejected
	}

	delta := 0
	switch transition {
	case TransitionStarted:
		delta = 1
	case TransitionStopped:
		delta = -1
	}
	s.recorder.RecordTransition(string(transition), delta)
	return transition
}

func (s *Service) activate(logger *slog.Logger, eventID string) Transition {
	ev, created := s.store.Activate(eventID, s.now())
	if !created {
		logger.Debug("live event refreshed", slog.Time("last_updated", ev.LastUpdated))
		return TransitionRefreshed
	}

	if err := s.scheduler.Start(eventID, s.actions(eventID)); err != nil {
		s.store.Remove(eventID)
		logging.Error(logger, "polling task not scheduled", err)
		return TransitionRejected
	}
	logger.Info("event is live, polling started")
	return TransitionStarted
}

func (s *Service) deactivate(logger *slog.Logger, eventID string) Transition {
	if _, ok := s.store.Remove(eventID); !ok {
		logger.Debug("event not live, nothing to stop")
		return TransitionUnchanged
	}
	s.scheduler.Stop(eventID)
	logger.Info("event no longer live, polling stopped")
	return TransitionStopped
}

// GetEvent returns the live event, or false when it is not LIVE or was never seen.
func (s *Service) GetEvent(eventID string) (domainevents.Event, bool) {
	return s.store.Get(eventID)
}

// LiveEvents lists live events ordered by id.
func (s *Service) LiveEvents() []domainevents.Event {
	return s.store.List()
}

func (s *Service) lockFor(eventID string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(eventID)%lockStripes]
}
