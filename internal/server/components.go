package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	appevents "github.com/preston-bernstein/live-score-service/internal/app/events"
	"github.com/preston-bernstein/live-score-service/internal/config"
	"github.com/preston-bernstein/live-score-service/internal/metrics"
	"github.com/preston-bernstein/live-score-service/internal/poller"
	"github.com/preston-bernstein/live-score-service/internal/publisher"
	"github.com/preston-bernstein/live-score-service/internal/scores"
	"github.com/preston-bernstein/live-score-service/internal/scores/httpsource"
)

// sinkNone selects the logging sink instead of Redis.
const sinkNone = "none"

// Scheduler is the scheduler surface the server drives.
type Scheduler interface {
	appevents.Scheduler
	Shutdown(ctx context.Context) error
	Closed() bool
	Len() int
}

// Publisher is the publisher surface the server drives.
type Publisher interface {
	poller.Publisher
	Close(ctx context.Context) error
}

// buildFetcher assembles the score source with shared wrappers (rate limit + retry).
func buildFetcher(cfg config.ScoreSourceConfig, logger *slog.Logger, recorder *metrics.Recorder) scores.Fetcher {
	base := httpsource.NewClient(httpsource.Config{
		URLTemplate: cfg.URLTemplate,
		Timeout:     cfg.Timeout,
	})
	limited := scores.NewRateLimitedFetcher(base, cfg.RateLimit, cfg.RateBurst, logger)
	return scores.NewRetryingFetcher(limited, logger, recorder, httpsource.Name, cfg.RetryAttempts, cfg.RetryBackoff)
}

// buildSink returns a Redis Streams sink, or a logging sink when REDIS_URL is "none" or unparseable.
// The returned client is nil for the logging sink.
func buildSink(cfg config.StreamConfig, logger *slog.Logger) (publisher.Sink, redis.UniversalClient) {
	raw := strings.TrimSpace(cfg.RedisURL)
	if raw == "" || strings.EqualFold(raw, sinkNone) {
		return publisher.NewLogSink(logger), nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		if logger != nil {
			logger.Warn("invalid redis url, publishing to log only", "err", err)
		}
		return publisher.NewLogSink(logger), nil
	}
	client := redis.NewClient(opts)
	return publisher.NewRedisStreamSink(client, cfg.MaxLen), client
}

func buildPublisher(sink publisher.Sink, cfg config.StreamConfig, logger *slog.Logger, recorder *metrics.Recorder) *publisher.Publisher {
	return publisher.New(sink, publisher.Config{
		Topic:       cfg.Topic,
		Lanes:       cfg.Lanes,
		QueueSize:   cfg.QueueSize,
		SendTimeout: cfg.PublishTimeout,
	}, logger, recorder)
}
