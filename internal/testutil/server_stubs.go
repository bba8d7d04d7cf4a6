package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/preston-bernstein/live-score-service/internal/scheduler"
)

// StubScheduler records Start/Stop calls without running anything.
type StubScheduler struct {
	mu            sync.Mutex
	active        map[string]scheduler.Action
	StartErr      error
	ShutdownErr   error
	StartCalls    int
	StopCalls     int
	ShutdownCalls int
	closed        bool
}

// NewStubScheduler returns an empty StubScheduler.
func NewStubScheduler() *StubScheduler {
	return &StubScheduler{active: make(map[string]scheduler.Action)}
}

func (s *StubScheduler) Start(eventID string, action scheduler.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCalls++
	if s.StartErr != nil {
		return s.StartErr
	}
	if s.closed {
		return &scheduler.StateError{Op: "start", EventID: eventID, Err: scheduler.ErrClosed}
	}
	if _, ok := s.active[eventID]; !ok {
		s.active[eventID] = action
	}
	return nil
}

func (s *StubScheduler) Stop(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
	_, ok := s.active[eventID]
	delete(s.active, eventID)
	return ok
}

func (s *StubScheduler) Shutdown(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ShutdownCalls++
	s.closed = true
	s.active = make(map[string]scheduler.Action)
	return s.ShutdownErr
}

func (s *StubScheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *StubScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Active reports whether a task is registered for eventID.
func (s *StubScheduler) Active(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[eventID]
	return ok
}

// Run invokes the registered action for eventID once, as a tick would.
func (s *StubScheduler) Run(ctx context.Context, eventID string) bool {
	s.mu.Lock()
	action, ok := s.active[eventID]
	s.mu.Unlock()
	if ok && action != nil {
		action(ctx)
	}
	return ok
}

// StubHTTPServer implements httpServer for tests.
type StubHTTPServer struct {
	AddrVal       string
	HandlerVal    http.Handler
	ListenCalls   int
	ShutdownCalls int
	ListenErr     error
	ShutdownErr   error
}

func (s *StubHTTPServer) ListenAndServe() error {
	s.ListenCalls++
	return s.ListenErr
}

func (s *StubHTTPServer) Shutdown(ctx context.Context) error {
	_ = ctx
	s.ShutdownCalls++
	return s.ShutdownErr
}

func (s *StubHTTPServer) Addr() string {
	return s.AddrVal
}

func (s *StubHTTPServer) Handler() http.Handler {
	return s.HandlerVal
}

// BlockingHTTPServer allows simulating a shutdown that waits on an unblock channel.
type BlockingHTTPServer struct {
	AddrVal       string
	HandlerVal    http.Handler
	ShutdownCalls int
	Unblock       chan struct{}
}

func (b *BlockingHTTPServer) ListenAndServe() error {
	return nil
}

func (b *BlockingHTTPServer) Shutdown(ctx context.Context) error {
	b.ShutdownCalls++
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.Unblock:
		return nil
	}
}

func (b *BlockingHTTPServer) Addr() string {
	return b.AddrVal
}

func (b *BlockingHTTPServer) Handler() http.Handler {
	return b.HandlerVal
}

// ErrHTTPServer returns an error on ListenAndServe; Shutdown increments a counter.
type ErrHTTPServer struct {
	ShutdownCalls int
}

func (e *ErrHTTPServer) ListenAndServe() error {
	return errors.New("listen failure")
}

func (e *ErrHTTPServer) Shutdown(ctx context.Context) error {
	_ = ctx
	e.ShutdownCalls++
	return nil
}

func (e *ErrHTTPServer) Addr() string {
	return ":0"
}

func (e *ErrHTTPServer) Handler() http.Handler {
	return http.NewServeMux()
}

// CloseableHTTPServer returns ErrServerClosed from ListenAndServe.
type CloseableHTTPServer struct {
	ShutdownCalls int
}

func (c *CloseableHTTPServer) ListenAndServe() error {
	return http.ErrServerClosed
}

func (c *CloseableHTTPServer) Shutdown(ctx context.Context) error {
	_ = ctx
	c.ShutdownCalls++
	return nil
}

func (c *CloseableHTTPServer) Addr() string {
	return ":0"
}

func (c *CloseableHTTPServer) Handler() http.Handler {
	return http.NewServeMux()
}
