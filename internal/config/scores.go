package config

import "strings"

// ScoreSourceConfig controls how we talk to the external score source.
type ScoreSourceConfig struct {
	// URLTemplate contains the literal placeholder {eventId}.
	URLTemplate   string
	Timeout       Duration
	RetryAttempts int
	RetryBackoff  Duration
	// RateLimit is requests per second across all events; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// EventPlaceholder is substituted with the event id in ScoreSourceConfig.URLTemplate.
const EventPlaceholder = "{eventId}"

func loadScoreSource(src source) ScoreSourceConfig {
	tmpl := src.str(keySourceURL, defaultSourceURL)
	if !strings.Contains(tmpl, EventPlaceholder) {
		tmpl = strings.TrimSuffix(tmpl, "/") + "/" + EventPlaceholder
	}
	return ScoreSourceConfig{
		URLTemplate:   tmpl,
		Timeout:       src.duration(keySourceTimeout, defaultSourceTimeout),
		RetryAttempts: src.integer(keyRetryAttempts, defaultRetryAttempts),
		RetryBackoff:  src.duration(keyRetryBackoff, defaultRetryBackoff),
		RateLimit:     src.nonNegativeFloat(keySourceRate),
		RateBurst:     src.integer(keySourceBurst, defaultSourceBurst),
	}
}
