package httpsource

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Placeholder is replaced by the event id in Config.URLTemplate.
const Placeholder = "{eventId}"

const (
	defaultURLTemplate = "http://localhost:4000/mock-event-api/" + Placeholder
	defaultHTTPTimeout = 5 * time.Second
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func resolveHTTPClient(client *http.Client, timeout time.Duration) httpDoer {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

func normalizeTemplate(raw string) string {
	if raw == "" {
		return defaultURLTemplate
	}
	if !strings.Contains(raw, Placeholder) {
		return strings.TrimSuffix(raw, "/") + "/" + Placeholder
	}
	return raw
}

// parseRetryAfter accepts either delta-seconds or an HTTP date.
func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
