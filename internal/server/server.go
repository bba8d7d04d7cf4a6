package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	appevents "github.com/preston-bernstein/live-score-service/internal/app/events"
	"github.com/preston-bernstein/live-score-service/internal/config"
	httpserver "github.com/preston-bernstein/live-score-service/internal/http"
	"github.com/preston-bernstein/live-score-service/internal/http/handlers"
	"github.com/preston-bernstein/live-score-service/internal/logging"
	"github.com/preston-bernstein/live-score-service/internal/metrics"
	"github.com/preston-bernstein/live-score-service/internal/poller"
	"github.com/preston-bernstein/live-score-service/internal/publisher"
	"github.com/preston-bernstein/live-score-service/internal/scheduler"
	"github.com/preston-bernstein/live-score-service/internal/scores"
	"github.com/preston-bernstein/live-score-service/internal/scores/mock"
	"github.com/preston-bernstein/live-score-service/internal/store"
)

var metricsSetup = metrics.Setup

type Server struct {
	cfg           config.Config
	logger        *slog.Logger
	metrics       *metrics.Recorder
	store         *store.MemoryStore
	events        *appevents.Service
	scheduler     Scheduler
	publisher     Publisher
	poller        *poller.Poller
	redis         redis.UniversalClient
	httpServer    httpServer
	metricsServer httpServer
	metricsStop   func(context.Context) error
}

// New constructs a server with the HTTP score source and the configured stream sink.
func New(cfg config.Config, logger *slog.Logger) *Server {
	return newServerWithMetrics(cfg, logger, nil, nil, nil)
}

// newServerWithMetrics builds the full pipeline. Nil fetcher, sink or recorder are built from cfg.
func newServerWithMetrics(cfg config.Config, logger *slog.Logger, fetcher scores.Fetcher, sink publisher.Sink, recorder *metrics.Recorder) *Server {
	recorder, metricsSrv, metricsShutdown := buildMetrics(cfg, logger, recorder)

	if fetcher == nil {
		fetcher = buildFetcher(cfg.ScoreSource, logger, recorder)
	}
	var redisClient redis.UniversalClient
	if sink == nil {
		sink, redisClient = buildSink(cfg.Stream, logger)
	}

	pub := buildPublisher(sink, cfg.Stream, logger, recorder)
	plr := poller.New(fetcher, pub, logger, recorder)
	sched := scheduler.New(cfg.PollInterval, cfg.WorkerPoolSize, logger)
	memoryStore := store.NewMemoryStore()
	svc := appevents.NewService(memoryStore, sched, plr.Action, logger, recorder)

	var mockSource handlers.ScoreSource
	if cfg.MockSourceEnabled {
		mockSource = mock.New()
	}
	handler := handlers.NewHandler(svc, mockSource, handlers.Readiness{
		SchedulerClosed: sched.Closed,
		ActiveTasks:     sched.Len,
		PollStatus:      plr.Status,
	}, logger)
	httpSrv := buildHTTPServer(cfg, handler, logger, recorder)

	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       recorder,
		store:         memoryStore,
		events:        svc,
		scheduler:     sched,
		publisher:     pub,
		poller:        plr,
		redis:         redisClient,
		httpServer:    httpSrv,
		metricsServer: metricsSrv,
		metricsStop:   metricsShutdown,
	}
}

// newServerWithDeps is used for testing to inject custom components.
func newServerWithDeps(cfg config.Config, logger *slog.Logger, sched Scheduler, pub Publisher, httpSrv httpServer) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		scheduler:  sched,
		publisher:  pub,
		httpServer: httpSrv,
	}
}

func buildHTTPServer(cfg config.Config, handler *handlers.Handler, logger *slog.Logger, recorder *metrics.Recorder) httpServer {
	if logger == nil {
		logger = logging.NewLogger(logging.Config{})
	}
	router := httpserver.NewRouter(handler, logger, recorder, cfg.CORSAllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return netHTTPServer{srv: srv}
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts everything down.
func (s *Server) Run(ctx context.Context) error {
	s.checkStream(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if s.metricsServer != nil {
		g.Go(func() error {
			// Metrics are best effort.
			if err := serve("metrics", s.metricsServer, s.logger); err != nil && s.logger != nil {
				s.logger.Warn("metrics server failed", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return serve("http", s.httpServer, s.logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		if s.logger != nil {
			s.logger.Info("shutdown signal received")
		}
		return s.gracefulShutdown()
	})
	return g.Wait()
}

func serve(name string, srv httpServer, logger *slog.Logger) error {
	if logger != nil {
		logger.Info("starting "+name+" server", slog.String("addr", srv.Addr()))
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// checkStream pings Redis once at startup. Failures are logged; publishing retries per message.
func (s *Server) checkStream(ctx context.Context) {
	if s.redis == nil {
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, streamPingTimeout)
	defer cancel()
	if err := s.redis.Ping(pingCtx).Err(); err != nil {
		if s.logger != nil {
			s.logger.Warn("redis stream unreachable at startup", "err", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Info("redis stream connected", slog.String(logging.FieldTopic, s.cfg.Stream.Topic))
	}
}

// gracefulShutdown stops intake first, then drains polling, then publishing.
func (s *Server) gracefulShutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	step := func(msg string, err error) {
		if err == nil {
			return
		}
		errs = append(errs, fmt.Errorf("%s: %w", msg, err))
		if s.logger != nil {
			s.logger.Error(msg, "error", err)
		}
	}

	step("graceful shutdown failed", s.httpServer.Shutdown(shutdownCtx))
	if s.scheduler != nil {
		step("failed to stop scheduler", s.scheduler.Shutdown(shutdownCtx))
	}
	if s.publisher != nil {
		step("failed to drain publisher", s.publisher.Close(shutdownCtx))
	}
	if s.redis != nil {
		step("failed to close redis client", s.redis.Close())
	}
	if s.metricsServer != nil {
		step("metrics server shutdown failed", s.metricsServer.Shutdown(shutdownCtx))
	}
	if s.metricsStop != nil {
		step("metrics shutdown failed", s.metricsStop(shutdownCtx))
	}

	if s.logger != nil {
		s.logger.Info("shutdown complete")
	}
	return errors.Join(errs...)
}

func buildMetrics(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*metrics.Recorder, httpServer, func(context.Context) error) {
	if recorder != nil {
		return recorder, nil, nil
	}

	recCfg := metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		Port:         cfg.Metrics.Port,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	}

	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		if logger != nil {
			logger.Warn("metrics setup failed, continuing without telemetry", "err", err)
		}
		return metrics.NewRecorder(), nil, nil
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled {
		metricsSrv = netHTTPServer{
			srv: &http.Server{
				Addr:              ":" + recCfg.Port,
				Handler:           handler,
				ReadHeaderTimeout: readTimeout,
			},
		}
	}

	return rec, metricsSrv, shutdown
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}
