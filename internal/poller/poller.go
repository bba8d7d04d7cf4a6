package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/logging"
	"github.com/preston-bernstein/live-score-service/internal/metrics"
	"github.com/preston-bernstein/live-score-service/internal/scheduler"
	"github.com/preston-bernstein/live-score-service/internal/scores"
)

// Publisher hands a fetch result to the downstream stream without blocking.
type Publisher interface {
	Publish(result events.FetchResult)
}

// Poller runs one fetch-then-publish cycle per call and tracks health across all events.
type Poller struct {
	fetcher   scores.Fetcher
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Recorder
	now       func() time.Time

	statusMu sync.RWMutex
	status   Status
}

// Status describes the recent health of poll cycles across all events.
type Status struct {
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
	LastAttempt         time.Time `json:"lastAttempt,omitempty"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
}

// IsHealthy reports whether cycles are not failing repeatedly. No attempts yet counts as healthy.
func (s Status) IsHealthy() bool {
	return s.ConsecutiveFailures < 3
}

// New constructs a Poller.
func New(fetcher scores.Fetcher, publisher Publisher, logger *slog.Logger, recorder *metrics.Recorder) *Poller {
	return &Poller{
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
		metrics:   recorder,
		now:       time.Now,
	}
}

// Action adapts Poll to a scheduler task for eventID.
func (p *Poller) Action(eventID string) scheduler.Action {
	return func(ctx context.Context) {
		_ = p.Poll(ctx, eventID)
	}
}

// Poll fetches the current score for eventID and, on success, publishes it. Failures are logged
// and returned for observation; they never stop future cycles.
func (p *Poller) Poll(ctx context.Context, eventID string) (err error) {
	start := p.now()
	p.recordAttempt(start)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("poll cycle panic: %v", rec)
			p.logError("poll cycle panicked", err, eventID)
			p.recordFailure(err, start)
		}
		p.metrics.RecordPollCycle(p.now().Sub(start), err)
	}()

	result, err := p.fetcher.Fetch(ctx, eventID)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logging.Debug(p.logger, "poll cycle cancelled during fetch", slog.String(logging.FieldEventID, eventID))
			return err
		}
		p.logError("score fetch failed, skipping cycle", err, eventID)
		p.recordFailure(err, start)
		return err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logging.Debug(p.logger, "poll cycle cancelled before publish", slog.String(logging.FieldEventID, eventID))
		return ctxErr
	}

	result.EventID = eventID
	p.publisher.Publish(result)
	p.recordSuccess(start)
	logging.Debug(p.logger, "poll cycle completed",
		slog.String(logging.FieldEventID, eventID),
		slog.String(logging.FieldScore, result.CurrentScore),
		slog.Int64(logging.FieldDurationMS, p.now().Sub(start).Milliseconds()),
	)
	return nil
}

func (p *Poller) logError(msg string, err error, eventID string) {
	logging.Error(p.logger, msg, err, slog.String(logging.FieldEventID, eventID))
}

func (p *Poller) recordAttempt(at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.LastAttempt = at
}

func (p *Poller) recordSuccess(at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures = 0
	p.status.LastError = ""
	p.status.LastSuccess = at
}

func (p *Poller) recordFailure(err error, at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures++
	if err != nil {
		p.status.LastError = err.Error()
	}
	p.status.LastAttempt = at
}

// Status returns a snapshot of recent poll health.
func (p *Poller) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}
