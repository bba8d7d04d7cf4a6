// Package scheduler runs one recurring task per event id on a shared, bounded worker pool.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/preston-bernstein/live-score-service/internal/logging"
)

const (
	defaultInterval = 10 * time.Second
	defaultPoolSize = 5
	// maxPending is how many runs of one task may wait for a worker at once.
	maxPending = 1
)

// Action is one scheduled run. ctx is cancelled when the task is stopped or the scheduler shuts down.
type Action func(ctx context.Context)

type task struct {
	cancel  context.CancelFunc
	pending atomic.Int32
}

// Scheduler keys tasks by event id. Start and Stop are safe to call concurrently for any ids.
//
// Runs are fixed-rate: every tick dispatches a run without waiting for the previous one, so runs of
// the same event may overlap when an action outlasts the interval. At most poolSize runs execute at
// once across all tasks. A tick is skipped while the task already has a run waiting for a worker.
type Scheduler struct {
	interval time.Duration
	sem      *semaphore.Weighted
	logger   *slog.Logger

	tasks sync.Map // eventID -> *task

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	baseCtx   context.Context
	cancelAll context.CancelFunc
}

// New creates a scheduler. Non-positive values fall back to a 10s interval and 5 workers.
func New(interval time.Duration, poolSize int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		interval:  interval,
		sem:       semaphore.NewWeighted(int64(poolSize)),
		logger:    logger,
		baseCtx:   ctx,
		cancelAll: cancel,
	}
}

// Interval returns the period between runs.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start registers a recurring task for eventID unless one already exists. The first run happens one
// interval after registration. A duplicate Start leaves the existing task and its timer untouched.
func (s *Scheduler) Start(eventID string, action Action) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &StateError{Op: "start", EventID: eventID, Err: ErrClosed}
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	t := &task{cancel: cancel}
	if _, loaded := s.tasks.LoadOrStore(eventID, t); loaded {
		cancel()
		return nil
	}

	s.wg.Add(1)
	go s.loop(ctx, t, eventID, action)
	logging.Info(s.logger, "polling task scheduled",
		slog.String(logging.FieldEventID, eventID),
		slog.Int64("interval_ms", s.interval.Milliseconds()),
	)
	return nil
}

// Stop cancels the task for eventID, interrupting a run in progress. It reports whether a task existed.
func (s *Scheduler) Stop(eventID string) bool {
	v, ok := s.tasks.LoadAndDelete(eventID)
	if !ok {
		return false
	}
	v.(*task).cancel()
	logging.Info(s.logger, "polling task cancelled", slog.String(logging.FieldEventID, eventID))
	return true
}

// Active reports whether a task is registered for eventID.
func (s *Scheduler) Active(eventID string) bool {
	_, ok := s.tasks.Load(eventID)
	return ok
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	n := 0
	s.tasks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Closed reports whether Shutdown has been called.
func (s *Scheduler) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Shutdown cancels every task and waits for running actions to return or ctx to expire.
// Later calls only wait.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cancelAll()
		s.tasks.Range(func(key, _ any) bool {
			s.tasks.Delete(key)
			return true
		})
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info(s.logger, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, t *task, eventID string, action Action) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.pending.Load() >= maxPending {
				logging.Warn(s.logger, "polling tick skipped, previous run still waiting for a worker",
					slog.String(logging.FieldEventID, eventID),
				)
				continue
			}
			t.pending.Add(1)
			// The loop holds a WaitGroup count, so this Add cannot race Shutdown's Wait.
			s.wg.Add(1)
			go s.dispatch(ctx, t, eventID, action)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, t *task, eventID string, action Action) {
	defer s.wg.Done()

	err := s.sem.Acquire(ctx, 1)
	t.pending.Add(-1)
	if err != nil {
		return
	}
	defer s.sem.Release(1)

	if ctx.Err() != nil {
		return
	}
	s.runSafely(ctx, eventID, action)
}

func (s *Scheduler) runSafely(ctx context.Context, eventID string, action Action) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error(s.logger, "scheduled run panicked", fmt.Errorf("panic: %v", rec),
				slog.String(logging.FieldEventID, eventID),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	action(ctx)
}
