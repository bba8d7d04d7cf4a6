package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/logging"
)

// Receipt identifies where a message landed.
type Receipt struct {
	Topic string
	Key   string
	// ID is the stream entry id, the stream's equivalent of an offset.
	ID string
}

// Sink writes one keyed message to a topic.
type Sink interface {
	Send(ctx context.Context, topic, key string, msg events.Message) (Receipt, error)
}

// RedisStreamSink appends messages to a Redis stream named after the topic.
type RedisStreamSink struct {
	client redis.UniversalClient
	maxLen int64
}

// NewRedisStreamSink creates a sink. A positive maxLen trims the stream approximately on every write.
func NewRedisStreamSink(client redis.UniversalClient, maxLen int64) *RedisStreamSink {
	if maxLen < 0 {
		maxLen = 0
	}
	return &RedisStreamSink{
		client: client,
		maxLen: maxLen,
	}
}

// Send issues XADD topic [MAXLEN ~ n] * key <eventId> data <json>.
func (s *RedisStreamSink) Send(ctx context.Context, topic, key string, msg events.Message) (Receipt, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshaling message: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: topic,
		ID:     "*",
		Values: map[string]interface{}{
			"key":  key,
			"data": string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return Receipt{}, fmt.Errorf("xadd %s: %w", topic, err)
	}
	return Receipt{Topic: topic, Key: key, ID: id}, nil
}

// Ping checks connectivity to Redis.
func (s *RedisStreamSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// LogSink writes messages to the log instead of a stream. Used when no Redis URL is configured.
type LogSink struct {
	logger *slog.Logger
	seq    atomic.Int64
}

// NewLogSink creates a sink that only logs.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, topic, key string, msg events.Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	id := "0-" + strconv.FormatInt(s.seq.Add(1), 10)
	logging.Debug(s.logger, "message written to log sink",
		slog.String(logging.FieldTopic, topic),
		slog.String(logging.FieldEventID, key),
		slog.String(logging.FieldScore, msg.CurrentScore),
		slog.String(logging.FieldEntryID, id),
	)
	return Receipt{Topic: topic, Key: key, ID: id}, nil
}
