package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/preston-bernstein/live-score-service/internal/config"
	"github.com/preston-bernstein/live-score-service/internal/logging"
	"github.com/preston-bernstein/live-score-service/internal/server"
)

const (
	appName    = "live-score-service"
	appVersion = "dev"
)

func main() {
	if os.Getenv("SKIP_SERVER_RUN") == "1" {
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLogger(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: appName,
		Version: appVersion,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.String(),
		"worker_pool_size", cfg.WorkerPoolSize,
		"topic", cfg.Stream.Topic,
	)
	srv := server.New(cfg, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", "err", err)
		return err
	}
	return nil
}
