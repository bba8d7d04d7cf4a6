package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appevents "github.com/preston-bernstein/live-score-service/internal/app/events"
	"github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/logging"
	"github.com/preston-bernstein/live-score-service/internal/poller"
)

const maxBodyBytes = 1 << 20

// EventService is the lifecycle manager surface the handlers need.
type EventService interface {
	ApplyStatus(ctx context.Context, eventID string, status events.Status) appevents.Transition
	GetEvent(eventID string) (events.Event, bool)
	LiveEvents() []events.Event
}

// ScoreSource produces scores for the mock external endpoint.
type ScoreSource interface {
	Score() string
}

// Readiness reports scheduler and poll health for /ready. Any field may be nil.
type Readiness struct {
	SchedulerClosed func() bool
	ActiveTasks     func() int
	PollStatus      func() poller.Status
}

// Handler wires HTTP routes to the event lifecycle service.
type Handler struct {
	svc       EventService
	mock      ScoreSource
	readiness Readiness
	logger    *slog.Logger
}

// NewHandler constructs a Handler. A nil mock disables the mock score endpoint.
func NewHandler(svc EventService, mock ScoreSource, readiness Readiness, logger *slog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		mock:      mock,
		readiness: readiness,
		logger:    logger,
	}
}

type statusResponse struct {
	EventID    string `json:"eventId"`
	Status     string `json:"status"`
	Transition string `json:"transition"`
	Message    string `json:"message"`
}

type readyResponse struct {
	Status      string         `json:"status"`
	ActiveTasks int            `json:"activeTasks"`
	Poll        *poller.Status `json:"poll,omitempty"`
	PollHealthy bool           `json:"pollHealthy"`
}

type mockScoreResponse struct {
	EventID      string `json:"eventId"`
	CurrentScore string `json:"currentScore"`
}

// Health reports the service health.
func (h *Handler) Health(w nethttp.ResponseWriter, r *nethttp.Request) {
	if err := r.Context().Err(); err != nil {
		writeError(w, r, nethttp.StatusServiceUnavailable, "shutting down", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// Ready reports readiness for traffic. It fails only once the scheduler has shut down;
// poll failures are reported but do not make the service unready.
func (h *Handler) Ready(w nethttp.ResponseWriter, r *nethttp.Request) {
	resp := readyResponse{Status: "ready", PollHealthy: true}
	if h.readiness.ActiveTasks != nil {
		resp.ActiveTasks = h.readiness.ActiveTasks()
	}
	if h.readiness.PollStatus != nil {
		status := h.readiness.PollStatus()
		resp.Poll = &status
		resp.PollHealthy = status.IsHealthy()
	}

	if h.readiness.SchedulerClosed != nil && h.readiness.SchedulerClosed() {
		resp.Status = "shutting down"
		writeJSON(w, nethttp.StatusServiceUnavailable, resp, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, resp, h.logger)
}

// UpdateStatus applies a LIVE/NOT_LIVE update for one event.
func (h *Handler) UpdateStatus(w nethttp.ResponseWriter, r *nethttp.Request) {
	logger := loggerFromContext(r, h.logger)

	var req events.StatusRequest
	dec := json.NewDecoder(nethttp.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		logging.Warn(logger, "malformed status request", "err", err)
		writeFieldErrors(w, map[string]string{"body": malformedBodyMessage(err)}, h.logger)
		return
	}

	eventID, status, err := req.Validate()
	if err != nil {
		var vErr *events.ValidationError
		if errors.As(err, &vErr) {
			logging.Warn(logger, "validation error", "fields", vErr.Fields)
			writeFieldErrors(w, vErr.Fields, h.logger)
			return
		}
		writeError(w, r, nethttp.StatusBadRequest, err.Error(), h.logger)
		return
	}

	transition := h.svc.ApplyStatus(r.Context(), eventID, status)
	if transition == appevents.TransitionRejected {
		writeError(w, r, nethttp.StatusServiceUnavailable, "event status could not be applied", h.logger)
		return
	}

	writeJSON(w, nethttp.StatusOK, statusResponse{
		EventID:    eventID,
		Status:     string(status),
		Transition: string(transition),
		Message:    "Event status updated successfully for event: " + eventID,
	}, h.logger)
}

// GetEvent returns a live event, or 404 when it is not live.
func (h *Handler) GetEvent(w nethttp.ResponseWriter, r *nethttp.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "eventId"))
	if id == "" {
		writeError(w, r, nethttp.StatusBadRequest, "invalid event id", h.logger)
		return
	}

	ev, ok := h.svc.GetEvent(id)
	if !ok {
		writeError(w, r, nethttp.StatusNotFound, "event not found", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, ev, h.logger)
}

// ListEvents returns every live event.
func (h *Handler) ListEvents(w nethttp.ResponseWriter, r *nethttp.Request) {
	live := h.svc.LiveEvents()
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"count":  len(live),
		"events": live,
	}, h.logger)
}

// MockScore stands in for the external score source during local runs.
func (h *Handler) MockScore(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h.mock == nil {
		writeError(w, r, nethttp.StatusNotFound, "not found", h.logger)
		return
	}
	id := chi.URLParam(r, "eventId")
	score := h.mock.Score()
	logging.Info(loggerFromContext(r, h.logger), "mock score served",
		slog.String(logging.FieldEventID, id),
		slog.String(logging.FieldScore, score),
	)
	writeJSON(w, nethttp.StatusOK, mockScoreResponse{EventID: id, CurrentScore: score}, h.logger)
}

// MockEnabled reports whether the mock score endpoint should be mounted.
func (h *Handler) MockEnabled() bool {
	return h.mock != nil
}

func malformedBodyMessage(err error) string {
	var maxErr *nethttp.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return "must not be empty"
	case errors.As(err, &maxErr):
		return fmt.Sprintf("must not exceed %d bytes", maxErr.Limit)
	default:
		return "must be a valid JSON object"
	}
}

// NotFound renders unknown routes as JSON.
func (h *Handler) NotFound(w nethttp.ResponseWriter, r *nethttp.Request) {
	writeError(w, r, nethttp.StatusNotFound, "not found", h.logger)
}

// MethodNotAllowed renders a JSON 405.
func (h *Handler) MethodNotAllowed(w nethttp.ResponseWriter, r *nethttp.Request) {
	writeError(w, r, nethttp.StatusMethodNotAllowed, "method not allowed", h.logger)
}
