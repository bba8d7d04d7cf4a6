package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/logging"
	"github.com/preston-bernstein/live-score-service/internal/metrics"
)

const (
	defaultLanes       = 4
	defaultQueueSize   = 256
	defaultSendTimeout = 5 * time.Second
)

// Completion is invoked once per Publish, after the send finished or was refused.
type Completion func(msg events.Message, receipt Receipt, err error)

// Config sizes the publisher.
type Config struct {
	Topic       string
	Lanes       int
	QueueSize   int
	SendTimeout time.Duration
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithClock overrides the clock used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithCompletion registers a callback run after the built-in logging and metrics.
func WithCompletion(fn Completion) Option {
	return func(p *Publisher) {
		p.onComplete = fn
	}
}

type job struct {
	msg events.Message
}

// Publisher sends messages asynchronously. Messages with the same event id share a lane and are
// sent in the order Publish was called.
type Publisher struct {
	sink       Sink
	topic      string
	timeout    time.Duration
	lanes      []chan job
	now        func() time.Time
	onComplete Completion
	logger     *slog.Logger
	recorder   *metrics.Recorder

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sendCtx    context.Context
	cancelSend context.CancelFunc
}

// New starts one worker per lane.
func New(sink Sink, cfg Config, logger *slog.Logger, recorder *metrics.Recorder, opts ...Option) *Publisher {
	lanes := cfg.Lanes
	if lanes <= 0 {
		lanes = defaultLanes
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = defaultQueueSize
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	sendCtx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		sink:       sink,
		topic:      cfg.Topic,
		timeout:    timeout,
		lanes:      make([]chan job, lanes),
		now:        time.Now,
		logger:     logger,
		recorder:   recorder,
		sendCtx:    sendCtx,
		cancelSend: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := range p.lanes {
		p.lanes[i] = make(chan job, queue)
		p.wg.Add(1)
		go p.run(p.lanes[i])
	}
	return p
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish stamps the message with the current time and queues it. It never blocks and never
// returns an error; refusals are reported through the completion path.
func (p *Publisher) Publish(result events.FetchResult) {
	msg := events.NewMessage(result, p.now())

	var refused error
	p.mu.RLock()
	if p.closed {
		refused = ErrClosed
	} else {
		select {
		case p.lanes[p.laneFor(msg.EventID)] <- job{msg: msg}:
		default:
			refused = ErrQueueFull
		}
	}
	p.mu.RUnlock()

	if refused != nil {
		p.complete(msg, Receipt{}, 0, &PublishError{EventID: msg.EventID, Topic: p.topic, Cause: refused})
	}
}

// Close stops accepting messages and waits for queued ones to be sent. When ctx expires first,
// in-flight sends are cancelled and ctx.Err() is returned.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, lane := range p.lanes {
			close(lane)
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancelSend()
		return nil
	case <-ctx.Done():
		p.cancelSend()
		return ctx.Err()
	}
}

func (p *Publisher) laneFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(p.lanes)))
}

func (p *Publisher) run(lane <-chan job) {
	defer p.wg.Done()
	for j := range lane {
		p.send(j.msg)
	}
}

func (p *Publisher) send(msg events.Message) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(p.sendCtx, p.timeout)
	defer cancel()

	receipt, err := p.sendSafely(ctx, msg)
	if err != nil {
		err = &PublishError{EventID: msg.EventID, Topic: p.topic, Cause: err}
	}
	p.complete(msg, receipt, time.Since(start), err)
}

func (p *Publisher) sendSafely(ctx context.Context, msg events.Message) (receipt Receipt, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sink panic: %v", rec)
		}
	}()
	if p.sink == nil {
		return Receipt{}, fmt.Errorf("no sink configured")
	}
	return p.sink.Send(ctx, p.topic, msg.EventID, msg)
}

func (p *Publisher) complete(msg events.Message, receipt Receipt, dur time.Duration, err error) {
	p.recorder.RecordPublish(p.topic, dur, err)
	if err != nil {
		logging.Error(p.logger, "failed to publish message", err,
			slog.String(logging.FieldTopic, p.topic),
			slog.String(logging.FieldEventID, msg.EventID),
		)
	} else {
		logging.Info(p.logger, "message published",
			slog.String(logging.FieldTopic, receipt.Topic),
			slog.String(logging.FieldEventID, receipt.Key),
			slog.String(logging.FieldEntryID, receipt.ID),
			slog.String(logging.FieldScore, msg.CurrentScore),
		)
	}
	if p.onComplete != nil {
		p.onComplete(msg, receipt, err)
	}
}
