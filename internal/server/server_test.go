package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/preston-bernstein/live-score-service/internal/config"
	"github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/metrics"
	"github.com/preston-bernstein/live-score-service/internal/publisher"
	"github.com/preston-bernstein/live-score-service/internal/testutil"
	"github.com/preston-bernstein/live-score-service/internal/teststubs"
)

type stubPublisher struct {
	teststubs.StubPublisher
	closeCalls int
	closeErr   error
}

func (p *stubPublisher) Close(ctx context.Context) error {
	_ = ctx
	p.closeCalls++
	return p.closeErr
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestServerPollsLiveEventIntoStream(t *testing.T) {
	mr := miniredis.RunT(t)
	reader := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = reader.Close() })

	cfg := config.Config{
		PollInterval:      10 * time.Millisecond,
		MockSourceEnabled: true,
		Stream: config.StreamConfig{
			RedisURL: "redis://" + mr.Addr(),
			Topic:    "sports-events",
			MaxLen:   100,
		},
	}
	fetcher := &teststubs.StubFetcher{Score: "3:1"}
	srv := newServerWithMetrics(cfg, nil, fetcher, nil, metrics.NewRecorder())
	t.Cleanup(func() { _ = srv.gracefulShutdown() })
	if srv.redis == nil {
		t.Fatalf("expected redis client for redis url")
	}
	router := srv.Handler()

	rr := testutil.ServeJSON(t, router, http.MethodPost, "/events/status",
		map[string]string{"eventId": "e1", "status": "LIVE"})
	testutil.AssertStatus(t, rr, http.StatusOK)

	ctx := context.Background()
	waitFor(t, 2*time.Second, func() bool {
		n, err := reader.XLen(ctx, "sports-events").Result()
		return err == nil && n > 0
	})

	entries, err := reader.XRange(ctx, "sports-events", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange failed: %v", err)
	}
	var msg events.Message
	if err := json.Unmarshal([]byte(entries[0].Values["data"].(string)), &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.EventID != "e1" || msg.CurrentScore != "3:1" || msg.Timestamp == 0 {
		t.Fatalf("unexpected message %+v", msg)
	}

	rr = testutil.Serve(router, http.MethodGet, "/events/e1", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.ServeJSON(t, router, http.MethodPost, "/events/status",
		map[string]string{"eventId": "e1", "status": "NOT_LIVE"})
	testutil.AssertStatus(t, rr, http.StatusOK)
	if srv.scheduler.Len() != 0 {
		t.Fatalf("expected no scheduled tasks after NOT_LIVE, got %d", srv.scheduler.Len())
	}
}

func TestServerServesHealthAndMock(t *testing.T) {
	cfg := config.Config{MockSourceEnabled: true, Stream: config.StreamConfig{RedisURL: sinkNone}}
	srv := newServerWithMetrics(cfg, nil, &teststubs.StubFetcher{Score: "0:0"}, nil, metrics.NewRecorder())
	t.Cleanup(func() { _ = srv.gracefulShutdown() })

	router := srv.Handler()
	testutil.AssertStatus(t, testutil.Serve(router, http.MethodGet, "/health", nil), http.StatusOK)
	testutil.AssertStatus(t, testutil.Serve(router, http.MethodGet, "/ready", nil), http.StatusOK)
	testutil.AssertStatus(t, testutil.Serve(router, http.MethodGet, "/mock-event-api/abc", nil), http.StatusOK)
}

func TestServerReadyFailsAfterShutdown(t *testing.T) {
	cfg := config.Config{Stream: config.StreamConfig{RedisURL: sinkNone}}
	srv := newServerWithMetrics(cfg, nil, &teststubs.StubFetcher{}, nil, metrics.NewRecorder())
	router := srv.Handler()

	if err := srv.gracefulShutdown(); err != nil {
		t.Fatalf("unexpected shutdown error %v", err)
	}
	testutil.AssertStatus(t, testutil.Serve(router, http.MethodGet, "/ready", nil), http.StatusServiceUnavailable)

	rr := testutil.ServeJSON(t, router, http.MethodPost, "/events/status",
		map[string]string{"eventId": "late", "status": "LIVE"})
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}

func TestServerMockDisabled(t *testing.T) {
	cfg := config.Config{Stream: config.StreamConfig{RedisURL: sinkNone}}
	srv := newServerWithMetrics(cfg, nil, &teststubs.StubFetcher{}, nil, metrics.NewRecorder())
	t.Cleanup(func() { _ = srv.gracefulShutdown() })

	rr := testutil.Serve(srv.Handler(), http.MethodGet, "/mock-event-api/abc", nil)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestNewConstructsServer(t *testing.T) {
	cfg := config.Config{
		Port:    "0",
		Stream:  config.StreamConfig{RedisURL: sinkNone},
		Metrics: config.MetricsConfig{Enabled: false},
	}
	srv := New(cfg, nil)
	t.Cleanup(func() { _ = srv.gracefulShutdown() })
	if srv == nil || srv.Handler() == nil {
		t.Fatalf("expected server with handler")
	}
	if srv.redis != nil {
		t.Fatalf("expected no redis client when sink disabled")
	}
}

func TestBuildSinkSelection(t *testing.T) {
	sink, client := buildSink(config.StreamConfig{RedisURL: "NONE"}, nil)
	if _, ok := sink.(*publisher.LogSink); !ok || client != nil {
		t.Fatalf("expected log sink for none, got %T", sink)
	}

	sink, client = buildSink(config.StreamConfig{RedisURL: "://bad"}, nil)
	if _, ok := sink.(*publisher.LogSink); !ok || client != nil {
		t.Fatalf("expected log sink for invalid url, got %T", sink)
	}

	sink, client = buildSink(config.StreamConfig{RedisURL: "redis://localhost:6379/0", MaxLen: 10}, nil)
	if _, ok := sink.(*publisher.RedisStreamSink); !ok || client == nil {
		t.Fatalf("expected redis sink, got %T", sink)
	}
	_ = client.Close()
}

func TestBuildFetcherUsesHTTPSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scores/e7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"eventId":"e7","currentScore":"5:4"}`))
	}))
	defer upstream.Close()

	fetcher := buildFetcher(config.ScoreSourceConfig{
		URLTemplate:   upstream.URL + "/scores/{eventId}",
		Timeout:       time.Second,
		RetryAttempts: 1,
		RetryBackoff:  time.Millisecond,
	}, nil, metrics.NewRecorder())

	res, err := fetcher.Fetch(context.Background(), "e7")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if res.CurrentScore != "5:4" {
		t.Fatalf("expected score 5:4, got %s", res.CurrentScore)
	}
}

func TestBuildMetricsSuccessPathSetsServerAndShutdown(t *testing.T) {
	orig := metricsSetup
	defer func() { metricsSetup = orig }()
	shutdowns := 0
	metricsSetup = testutil.StubMetricsSetup(metrics.NewRecorder(), http.NewServeMux(), &shutdowns, nil)

	rec, srv, stop := buildMetrics(config.Config{
		Metrics: config.MetricsConfig{Enabled: true, Port: "9999"},
	}, nil, nil)

	if rec == nil || srv == nil || stop == nil {
		t.Fatalf("expected recorder, server, and shutdown to be set on success")
	}
	if srv.Addr() != ":9999" {
		t.Fatalf("expected metrics addr :9999, got %s", srv.Addr())
	}
	_ = stop(context.Background())
	if shutdowns != 1 {
		t.Fatalf("expected shutdown to be counted, got %d", shutdowns)
	}
}

func TestBuildMetricsHandlesSetupFailure(t *testing.T) {
	orig := metricsSetup
	defer func() { metricsSetup = orig }()
	metricsSetup = testutil.StubMetricsSetup(nil, nil, nil, errors.New("fail"))

	rec, srv, stop := buildMetrics(config.Config{Metrics: config.MetricsConfig{Enabled: true}}, nil, nil)
	if rec == nil {
		t.Fatalf("expected fallback metrics recorder even on setup failure")
	}
	if srv != nil || stop != nil {
		t.Fatalf("expected no metrics server on failure")
	}
}

func TestBuildMetricsUsesInjectedRecorder(t *testing.T) {
	rec := metrics.NewRecorder()
	got, srv, stop := buildMetrics(config.Config{Metrics: config.MetricsConfig{Enabled: true}}, nil, rec)
	if got != rec || srv != nil || stop != nil {
		t.Fatalf("expected injected recorder to be used as is")
	}
}

func TestGracefulShutdownStopsEveryComponent(t *testing.T) {
	sched := testutil.NewStubScheduler()
	pub := &stubPublisher{}
	httpSrv := &testutil.StubHTTPServer{}
	metricsSrv := &testutil.StubHTTPServer{}

	srv := newServerWithDeps(config.Config{}, nil, sched, pub, httpSrv)
	srv.metricsServer = metricsSrv
	stops := 0
	srv.metricsStop = func(context.Context) error { stops++; return nil }

	if err := srv.gracefulShutdown(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if httpSrv.ShutdownCalls != 1 || sched.ShutdownCalls != 1 || pub.closeCalls != 1 {
		t.Fatalf("expected each component stopped once, got http=%d sched=%d pub=%d",
			httpSrv.ShutdownCalls, sched.ShutdownCalls, pub.closeCalls)
	}
	if metricsSrv.ShutdownCalls != 1 || stops != 1 {
		t.Fatalf("expected metrics stopped once")
	}
}

func TestGracefulShutdownContinuesAfterErrors(t *testing.T) {
	sched := testutil.NewStubScheduler()
	sched.ShutdownErr = errors.New("scheduler stuck")
	pub := &stubPublisher{closeErr: errors.New("drain failed")}
	httpSrv := &testutil.StubHTTPServer{}

	srv := newServerWithDeps(config.Config{}, nil, sched, pub, httpSrv)
	err := srv.gracefulShutdown()
	if err == nil {
		t.Fatalf("expected joined shutdown error")
	}
	if !errors.Is(err, sched.ShutdownErr) || !errors.Is(err, pub.closeErr) {
		t.Fatalf("expected both failures reported, got %v", err)
	}
	if pub.closeCalls != 1 {
		t.Fatalf("expected publisher closed despite scheduler error")
	}
}

func TestGracefulShutdownTimesOutLongRunningShutdown(t *testing.T) {
	blocking := &testutil.BlockingHTTPServer{
		AddrVal:    ":0",
		HandlerVal: http.NewServeMux(),
		Unblock:    make(chan struct{}),
	}

	original := shutdownTimeout
	shutdownTimeout = 5 * time.Millisecond
	defer func() { shutdownTimeout = original }()

	sched := testutil.NewStubScheduler()
	srv := newServerWithDeps(config.Config{}, nil, sched, &stubPublisher{}, blocking)

	start := time.Now()
	err := srv.gracefulShutdown()
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if blocking.ShutdownCalls != 1 || sched.ShutdownCalls != 1 {
		t.Fatalf("expected shutdown to proceed past blocked http server")
	}
	if elapsed > 200*time.Millisecond {
		t.Fatalf("shutdown took too long: %s", elapsed)
	}
}

func TestRunReturnsListenErrorAndStops(t *testing.T) {
	sched := testutil.NewStubScheduler()
	pub := &stubPublisher{}
	httpSrv := &testutil.ErrHTTPServer{}
	srv := newServerWithDeps(config.Config{}, nil, sched, pub, httpSrv)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected listen error from Run")
		}
	case <-time.After(time.Second):
		t.Fatal("run did not return after listen failure")
	}
	if sched.ShutdownCalls != 1 || pub.closeCalls != 1 {
		t.Fatalf("expected components stopped after listen failure")
	}
}

func TestRunCancelsAndStopsComponents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := testutil.NewStubScheduler()
	pub := &stubPublisher{}
	httpSrv := &testutil.CloseableHTTPServer{}
	metricsSrv := &testutil.ErrHTTPServer{}
	srv := newServerWithDeps(config.Config{}, nil, sched, pub, httpSrv)
	srv.metricsServer = metricsSrv

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean run, got %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("run did not return after cancel")
	}

	if httpSrv.ShutdownCalls != 1 || sched.ShutdownCalls != 1 || pub.closeCalls != 1 {
		t.Fatalf("expected each component stopped once")
	}
	if metricsSrv.ShutdownCalls != 1 {
		t.Fatalf("expected metrics server stopped even after its listener failed")
	}
}

func TestRunPingsStream(t *testing.T) {
	mr := miniredis.RunT(t)
	logger, buf := testutil.NewBufferLogger()
	cfg := config.Config{Stream: config.StreamConfig{RedisURL: "redis://" + mr.Addr(), Topic: "sports-events"}}
	srv := newServerWithMetrics(cfg, logger, &teststubs.StubFetcher{}, nil, metrics.NewRecorder())
	srv.httpServer = &testutil.CloseableHTTPServer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected run error %v", err)
	}
	if !strings.Contains(buf.String(), "redis stream connected") {
		t.Fatalf("expected connection log, got %s", buf.String())
	}
}
