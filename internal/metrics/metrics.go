package metrics

import (
	"sync"
	"time"
)

type sourceStats struct {
	calls           int
	errors          int
	rateLimitHits   int
	lastRetryAfter  time.Duration
	lastCallLatency time.Duration
}

type pipelineStats struct {
	pollCycles     int
	pollErrors     int
	published      int
	publishErrors  int
	liveEvents     int
	transitions    map[string]int
	lastPollLength time.Duration
}

// Recorder captures lightweight, in-memory metrics about score fetches, poll cycles and publishes,
// and forwards them to OpenTelemetry instruments when configured.
type Recorder struct {
	mu       sync.Mutex
	stats    map[string]*sourceStats
	pipeline pipelineStats
	otel     *otelInstruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		stats:    make(map[string]*sourceStats),
		pipeline: pipelineStats{transitions: make(map[string]int)},
		otel:     otel,
	}
}

// RecordSourceAttempt increments counters for one score source call and stores the last observed latency.
func (r *Recorder) RecordSourceAttempt(source string, duration time.Duration, err error) {
	if r == nil {
		return
	}

	r.mu.Lock()
	stats := r.ensureStats(source)
	stats.calls++
	stats.lastCallLatency = duration
	if err != nil {
		stats.errors++
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordSourceAttempt(source, duration, err)
	}
}

// RecordRateLimit tracks that a source response hit a rate limit and stores the last Retry-After.
func (r *Recorder) RecordRateLimit(source string, retryAfter time.Duration) {
	if r == nil {
		return
	}

	r.mu.Lock()
	stats := r.ensureStats(source)
	stats.rateLimitHits++
	if retryAfter > 0 {
		stats.lastRetryAfter = retryAfter
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordRateLimit(source, retryAfter)
	}
}

// RecordPollCycle tracks one fetch-then-publish cycle.
func (r *Recorder) RecordPollCycle(duration time.Duration, err error) {
	if r == nil {
		return
	}

	r.mu.Lock()
	r.pipeline.pollCycles++
	r.pipeline.lastPollLength = duration
	if err != nil {
		r.pipeline.pollErrors++
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordPoller(duration, err)
	}
}

// RecordPublish tracks the completion of one downstream publish.
func (r *Recorder) RecordPublish(topic string, duration time.Duration, err error) {
	if r == nil {
		return
	}

	r.mu.Lock()
	if err != nil {
		r.pipeline.publishErrors++
	} else {
		r.pipeline.published++
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordPublish(topic, duration, err)
	}
}

// RecordTransition counts a lifecycle transition and adjusts the live-event gauge by delta.
func (r *Recorder) RecordTransition(transition string, delta int) {
	if r == nil {
		return
	}

	r.mu.Lock()
	r.pipeline.transitions[transition]++
	r.pipeline.liveEvents += delta
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordTransition(transition, delta)
	}
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// SourceCalls returns the total attempts recorded for a source.
func (r *Recorder) SourceCalls(source string) int {
	return r.Snapshot(source).Calls
}

// SourceErrors returns the total failed attempts recorded for a source.
func (r *Recorder) SourceErrors(source string) int {
	return r.Snapshot(source).Errors
}

// RateLimitHits returns the number of rate limit events seen for a source.
func (r *Recorder) RateLimitHits(source string) int {
	return r.Snapshot(source).RateLimitHits
}

// LastRetryAfter returns the most recent Retry-After recorded for a source.
func (r *Recorder) LastRetryAfter(source string) time.Duration {
	return r.Snapshot(source).LastRetryAfter
}

// Snapshot returns a copy of the current stats for the source.
type Snapshot struct {
	Calls           int
	Errors          int
	RateLimitHits   int
	LastRetryAfter  time.Duration
	LastCallLatency time.Duration
}

func (r *Recorder) Snapshot(source string) Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[source]
	if !ok || stats == nil {
		return Snapshot{}
	}
	return Snapshot{
		Calls:           stats.calls,
		Errors:          stats.errors,
		RateLimitHits:   stats.rateLimitHits,
		LastRetryAfter:  stats.lastRetryAfter,
		LastCallLatency: stats.lastCallLatency,
	}
}

// PipelineSnapshot summarizes poll and publish activity.
type PipelineSnapshot struct {
	PollCycles     int
	PollErrors     int
	Published      int
	PublishErrors  int
	LiveEvents     int
	Transitions    map[string]int
	LastPollLength time.Duration
}

// Pipeline returns a copy of the poll/publish counters.
func (r *Recorder) Pipeline() PipelineSnapshot {
	if r == nil {
		return PipelineSnapshot{Transitions: map[string]int{}}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	transitions := make(map[string]int, len(r.pipeline.transitions))
	for k, v := range r.pipeline.transitions {
		transitions[k] = v
	}
	return PipelineSnapshot{
		PollCycles:     r.pipeline.pollCycles,
		PollErrors:     r.pipeline.pollErrors,
		Published:      r.pipeline.published,
		PublishErrors:  r.pipeline.publishErrors,
		LiveEvents:     r.pipeline.liveEvents,
		Transitions:    transitions,
		LastPollLength: r.pipeline.lastPollLength,
	}
}

// ensureStats must be called with r.mu held.
func (r *Recorder) ensureStats(source string) *sourceStats {
	stats, ok := r.stats[source]
	if !ok {
		stats = &sourceStats{}
		r.stats[source] = stats
	}
	return stats
}
