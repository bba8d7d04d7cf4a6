package scores

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/logging"
	"github.com/preston-bernstein/live-score-service/internal/metrics"
)

const (
	defaultRetryAttempts = 3
	defaultBackoff       = 3 * time.Second
	defaultSourceName    = "score-source"
)

type backoffFactory func() backoff.BackOff

// retryingFetcher wraps a Fetcher with bounded exponential backoff.
type retryingFetcher struct {
	inner       Fetcher
	logger      *slog.Logger
	recorder    *metrics.Recorder
	source      string
	maxAttempts int
	newBackoff  backoffFactory
}

// NewRetryingFetcher wraps inner with retries. maxAttempts counts the first call, so 3 means
// one call plus two retries. Delays start at initial and double. Non-positive values use defaults.
func NewRetryingFetcher(inner Fetcher, logger *slog.Logger, recorder *metrics.Recorder, source string, maxAttempts int, initial time.Duration) Fetcher {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if initial <= 0 {
		initial = defaultBackoff
	}
	if source == "" {
		source = defaultSourceName
	}
	return &retryingFetcher{
		inner:       inner,
		logger:      logger,
		recorder:    recorder,
		source:      source,
		maxAttempts: maxAttempts,
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.Multiplier = 2
			b.RandomizationFactor = 0
			b.MaxInterval = initial << uint(maxAttempts)
			b.MaxElapsedTime = 0
			return b
		},
	}
}

func (r *retryingFetcher) Fetch(ctx context.Context, eventID string) (events.FetchResult, error) {
	if r.inner == nil {
		return events.FetchResult{}, &FetchError{EventID: eventID, Cause: ErrSourceUnavailable}
	}

	var (
		result     events.FetchResult
		attempt    int
		retryAfter time.Duration
	)

	op := func() error {
		attempt++
		start := time.Now()
		res, err := r.inner.Fetch(ctx, eventID)
		r.recorder.RecordSourceAttempt(r.source, time.Since(start), err)
		if err != nil {
			if rlErr, ok := AsRateLimitError(err); ok {
				r.recorder.RecordRateLimit(r.source, rlErr.RetryAfter)
				retryAfter = rlErr.RetryAfter
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}

	notify := func(err error, delay time.Duration) {
		r.logWarn(ctx, "score fetch retry",
			slog.String(logging.FieldEventID, eventID),
			slog.Int(logging.FieldAttempt, attempt),
			slog.Int("max_attempts", r.maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("err", err),
		)
	}

	policy := &retryAfterBackOff{BackOff: r.newBackoff(), hint: &retryAfter}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.maxAttempts-1)), ctx)

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		r.logWarn(ctx, "score fetch failed",
			slog.String(logging.FieldEventID, eventID),
			slog.Int("attempts", attempt),
			slog.Any("err", err),
		)
		return events.FetchResult{}, &FetchError{EventID: eventID, Attempts: attempt, Cause: err}
	}
	return result, nil
}

func (r *retryingFetcher) logWarn(ctx context.Context, msg string, args ...any) {
	logger := logging.FromContext(ctx, r.logger)
	if logger != nil {
		args = append(args, slog.String(logging.FieldSource, r.source))
		logger.Warn(msg, args...)
	}
}

// retryAfterBackOff stretches the next delay to an upstream Retry-After hint when one is longer.
type retryAfterBackOff struct {
	backoff.BackOff
	hint *time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if *b.hint > next {
		next = *b.hint
	}
	*b.hint = 0
	return next
}
