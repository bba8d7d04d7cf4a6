package scores

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/logging"
)

// rateLimitedFetcher shares one token bucket across every event polling the same source.
type rateLimitedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimitedFetcher returns a Fetcher that waits for a token before each upstream call.
// A non-positive perSecond disables limiting and returns next unchanged.
func NewRateLimitedFetcher(next Fetcher, perSecond float64, burst int, logger *slog.Logger) Fetcher {
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedFetcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  logger,
	}
}

func (p *rateLimitedFetcher) Fetch(ctx context.Context, eventID string) (events.FetchResult, error) {
	if p == nil || p.next == nil {
		return events.FetchResult{}, ErrSourceUnavailable
	}
	if err := p.limiter.Wait(ctx); err != nil {
		logging.Warn(p.logger, "rate-limited fetch canceled",
			slog.String(logging.FieldEventID, eventID),
			slog.Any("err", err),
		)
		return events.FetchResult{}, err
	}
	return p.next.Fetch(ctx, eventID)
}
