package http

import (
	"log/slog"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/preston-bernstein/live-score-service/internal/http/handlers"
	"github.com/preston-bernstein/live-score-service/internal/http/middleware"
	"github.com/preston-bernstein/live-score-service/internal/http/requestutil"
	"github.com/preston-bernstein/live-score-service/internal/metrics"
)

// NewRouter registers HTTP routes on a chi router with logging, panic recovery and CORS.
// An empty allowedOrigins list disables CORS handling.
func NewRouter(handler *handlers.Handler, logger *slog.Logger, recorder *metrics.Recorder, allowedOrigins []string) nethttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(logger, recorder))
	r.Use(chimw.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{nethttp.MethodGet, nethttp.MethodPost, nethttp.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", requestutil.HeaderRequestID},
			ExposedHeaders: []string{requestutil.HeaderRequestID},
			MaxAge:         300,
		}))
	}

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready)
	r.Get("/events", handler.ListEvents)
	r.Post("/events/status", handler.UpdateStatus)
	r.Get("/events/{eventId}", handler.GetEvent)
	if handler.MockEnabled() {
		r.Get("/mock-event-api/{eventId}", handler.MockScore)
	}
	return r
}
