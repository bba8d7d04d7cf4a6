package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testInterval = 10 * time.Millisecond

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func shutdown(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected shutdown error %v", err)
	}
}

func TestStartRunsAfterOneInterval(t *testing.T) {
	s := New(50*time.Millisecond, 5, nil)
	defer shutdown(t, s)

	var runs atomic.Int32
	if err := s.Start("e1", func(ctx context.Context) { runs.Add(1) }); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Fatalf("expected no immediate run, got %d", got)
	}
	waitFor(t, time.Second, func() bool { return runs.Load() >= 2 })
}

func TestDuplicateStartKeepsExistingTask(t *testing.T) {
	s := New(testInterval, 5, nil)
	defer shutdown(t, s)

	var first, second atomic.Int32
	_ = s.Start("e1", func(ctx context.Context) { first.Add(1) })
	_ = s.Start("e1", func(ctx context.Context) { second.Add(1) })

	if s.Len() != 1 {
		t.Fatalf("expected 1 task, got %d", s.Len())
	}
	waitFor(t, time.Second, func() bool { return first.Load() >= 3 })
	if got := second.Load(); got != 0 {
		t.Fatalf("expected duplicate action never to run, got %d", got)
	}
}

func TestConcurrentStartsCreateOneTask(t *testing.T) {
	s := New(testInterval, 5, nil)
	defer shutdown(t, s)

	var counters [50]atomic.Int32
	var wg sync.WaitGroup
	for i := range counters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Start("e1", func(ctx context.Context) { counters[i].Add(1) })
		}(i)
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Fatalf("expected 1 task, got %d", s.Len())
	}
	time.Sleep(5 * testInterval)

	running := 0
	for i := range counters {
		if counters[i].Load() > 0 {
			running++
		}
	}
	if running != 1 {
		t.Fatalf("expected exactly one action to run, got %d", running)
	}
}

func TestStopCancelsFutureRunsAndInterruptsInFlight(t *testing.T) {
	s := New(testInterval, 5, nil)
	defer shutdown(t, s)

	started := make(chan struct{}, 1)
	interrupted := make(chan struct{})
	var runs atomic.Int32
	_ = s.Start("e1", func(ctx context.Context) {
		if runs.Add(1) == 1 {
			started <- struct{}{}
			<-ctx.Done()
			close(interrupted)
		}
	})

	<-started
	if !s.Stop("e1") {
		t.Fatalf("expected stop to find the task")
	}
	select {
	case <-interrupted:
	case <-time.After(time.Second):
		t.Fatal("expected in-flight run to observe cancellation")
	}

	if s.Active("e1") {
		t.Fatalf("expected task to be removed")
	}
	after := runs.Load()
	time.Sleep(5 * testInterval)
	if got := runs.Load(); got != after {
		t.Fatalf("expected no runs after stop, got %d more", got-after)
	}
}

func TestStopUnknownIsNoop(t *testing.T) {
	s := New(testInterval, 5, nil)
	defer shutdown(t, s)

	if s.Stop("missing") {
		t.Fatalf("expected stop on unknown id to report false")
	}
}

func TestRestartAfterStop(t *testing.T) {
	s := New(testInterval, 5, nil)
	defer shutdown(t, s)

	_ = s.Start("e1", func(ctx context.Context) {})
	s.Stop("e1")

	var runs atomic.Int32
	_ = s.Start("e1", func(ctx context.Context) { runs.Add(1) })
	waitFor(t, time.Second, func() bool { return runs.Load() > 0 })
}

func TestFixedRateAllowsOverlap(t *testing.T) {
	s := New(testInterval, 5, nil)
	defer shutdown(t, s)

	var current, peak atomic.Int32
	_ = s.Start("e1", func(ctx context.Context) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		select {
		case <-time.After(4 * testInterval):
		case <-ctx.Done():
		}
		current.Add(-1)
	})

	waitFor(t, 2*time.Second, func() bool { return peak.Load() >= 2 })
}

func TestPanicDoesNotStopSchedule(t *testing.T) {
	s := New(testInterval, 5, nil)
	defer shutdown(t, s)

	var panicky, healthy atomic.Int32
	_ = s.Start("bad", func(ctx context.Context) {
		panicky.Add(1)
		panic("boom")
	})
	_ = s.Start("good", func(ctx context.Context) { healthy.Add(1) })

	waitFor(t, time.Second, func() bool { return panicky.Load() >= 3 && healthy.Load() >= 3 })
	if !s.Active("bad") {
		t.Fatalf("expected panicking task to stay scheduled")
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	s := New(testInterval, 2, nil)
	defer shutdown(t, s)

	var current, peak, total atomic.Int32
	action := func(ctx context.Context) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		total.Add(1)
		select {
		case <-time.After(3 * testInterval):
		case <-ctx.Done():
		}
		current.Add(-1)
	}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_ = s.Start(id, action)
	}

	waitFor(t, 2*time.Second, func() bool { return total.Load() >= 6 })
	if got := peak.Load(); got > 2 {
		t.Fatalf("expected at most 2 concurrent runs, got %d", got)
	}
}

func TestSaturatedPoolKeepsWaitingRunsBounded(t *testing.T) {
	s := New(2*time.Millisecond, 1, nil)
	defer shutdown(t, s)

	release := make(chan struct{})
	var started atomic.Int32
	action := func(ctx context.Context) {
		started.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
	_ = s.Start("a", action)
	_ = s.Start("b", action)

	pending := func(id string) int32 {
		v, ok := s.tasks.Load(id)
		if !ok {
			return 0
		}
		return v.(*task).pending.Load()
	}

	waitFor(t, time.Second, func() bool { return started.Load() == 1 })
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		for _, id := range []string{"a", "b"} {
			if got := pending(id); got > maxPending {
				t.Fatalf("expected at most %d waiting run for %s, got %d", maxPending, id, got)
			}
		}
		time.Sleep(time.Millisecond)
	}
	if got := started.Load(); got != 1 {
		t.Fatalf("expected only the running action while the pool is full, got %d", got)
	}

	close(release)
	waitFor(t, time.Second, func() bool { return started.Load() >= 4 })
}

func TestShutdownStopsEverythingAndRejectsStart(t *testing.T) {
	s := New(testInterval, 5, nil)

	var runs atomic.Int32
	_ = s.Start("e1", func(ctx context.Context) { runs.Add(1) })
	_ = s.Start("e2", func(ctx context.Context) { runs.Add(1) })
	waitFor(t, time.Second, func() bool { return runs.Load() > 0 })

	shutdown(t, s)
	if !s.Closed() {
		t.Fatalf("expected scheduler to report closed")
	}
	if s.Len() != 0 {
		t.Fatalf("expected no tasks after shutdown, got %d", s.Len())
	}

	after := runs.Load()
	time.Sleep(5 * testInterval)
	if got := runs.Load(); got != after {
		t.Fatalf("expected no runs after shutdown")
	}

	err := s.Start("e3", func(ctx context.Context) {})
	var stateErr *StateError
	if !errors.As(err, &stateErr) || stateErr.EventID != "e3" || stateErr.Op != "start" {
		t.Fatalf("expected StateError for e3, got %v", err)
	}
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	shutdown(t, s)
}

func TestShutdownHonorsDeadline(t *testing.T) {
	s := New(testInterval, 5, nil)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	_ = s.Start("e1", func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(release)
	shutdown(t, s)
}

func TestNewDefaults(t *testing.T) {
	s := New(0, 0, nil)
	defer shutdown(t, s)
	if s.Interval() != defaultInterval {
		t.Fatalf("expected default interval, got %s", s.Interval())
	}
}
