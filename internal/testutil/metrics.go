package testutil

import (
	"context"
	"net/http"

	"github.com/preston-bernstein/live-score-service/internal/metrics"
)

// MetricsSetupFunc matches metrics.Setup.
type MetricsSetupFunc func(context.Context, metrics.TelemetryConfig) (*metrics.Recorder, http.Handler, func(context.Context) error, error)

// StubMetricsSetup returns a setup function that hands back rec, the given handler and a shutdown that
// counts its calls into shutdowns. A non-nil err makes setup fail.
func StubMetricsSetup(rec *metrics.Recorder, handler http.Handler, shutdowns *int, err error) MetricsSetupFunc {
	return func(context.Context, metrics.TelemetryConfig) (*metrics.Recorder, http.Handler, func(context.Context) error, error) {
		if err != nil {
			return nil, nil, nil, err
		}
		return rec, handler, func(context.Context) error {
			if shutdowns != nil {
				*shutdowns++
			}
			return nil
		}, nil
	}
}
