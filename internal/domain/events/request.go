package events

import (
	"fmt"
	"sort"
	"strings"
)

// StatusRequest is the inbound status update payload.
type StatusRequest struct {
	EventID string `json:"eventId"`
	Status  string `json:"status"`
}

// ValidationError reports per-field problems with an inbound request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Validate checks the request and returns the trimmed id and parsed status.
func (r StatusRequest) Validate() (string, Status, error) {
	fields := make(map[string]string)

	id := strings.TrimSpace(r.EventID)
	if id == "" {
		fields["eventId"] = "must not be blank"
	}

	var status Status
	if strings.TrimSpace(r.Status) == "" {
		fields["status"] = "must not be null"
	} else if parsed, ok := ParseStatus(r.Status); ok {
		status = parsed
	} else {
		fields["status"] = fmt.Sprintf("must be one of %s, %s", StatusLive, StatusNotLive)
	}

	if len(fields) > 0 {
		return "", "", &ValidationError{Fields: fields}
	}
	return id, status, nil
}
