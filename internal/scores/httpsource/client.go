// Package httpsource fetches scores from an HTTP endpoint keyed by event id.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/preston-bernstein/live-score-service/internal/domain/events"
	"github.com/preston-bernstein/live-score-service/internal/scores"
)

// Name identifies this source in logs and metrics.
const Name = "http"

// Config controls how the client reaches the score source.
type Config struct {
	// URLTemplate must contain Placeholder; it is replaced by the path-escaped event id.
	URLTemplate string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// Client issues one GET per fetch and decodes {eventId, currentScore}.
type Client struct {
	urlTemplate string
	httpClient  httpDoer
	now         func() time.Time
}

type scoreResponse struct {
	EventID      string `json:"eventId"`
	CurrentScore string `json:"currentScore"`
}

// NewClient constructs a client with the provided configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		urlTemplate: normalizeTemplate(cfg.URLTemplate),
		httpClient:  resolveHTTPClient(cfg.HTTPClient, cfg.Timeout),
		now:         time.Now,
	}
}

// Fetch performs a single request. Retries are layered on by scores.NewRetryingFetcher.
func (c *Client) Fetch(ctx context.Context, eventID string) (events.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(eventID), nil)
	if err != nil {
		return events.FetchResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return events.FetchResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return events.FetchResult{}, &scores.RateLimitError{
			Source:     Name,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
			Remaining:  resp.Header.Get("X-RateLimit-Remaining"),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return events.FetchResult{}, fmt.Errorf("score source: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return events.FetchResult{}, fmt.Errorf("score source: decode response: %w", err)
	}
	if strings.TrimSpace(payload.CurrentScore) == "" {
		return events.FetchResult{}, fmt.Errorf("score source: response for %s missing currentScore", eventID)
	}

	id := payload.EventID
	if id == "" {
		id = eventID
	}
	return events.FetchResult{
		EventID:      id,
		CurrentScore: payload.CurrentScore,
		CapturedAt:   c.now(),
	}, nil
}

func (c *Client) buildURL(eventID string) string {
	return strings.ReplaceAll(c.urlTemplate, Placeholder, url.PathEscape(eventID))
}
