package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Duration wraps time.Duration for clearer type usage in Config.
type Duration = time.Duration

// source resolves keys from environment variables and an optional config file.
type source struct {
	v *viper.Viper
}

func newSource() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(keyPort, defaultPort)
	v.SetDefault(keyPollInterval, defaultPollInterval)
	v.SetDefault(keyWorkerPool, defaultWorkerPool)
	v.SetDefault(keyMockSource, defaultMockSource)
	v.SetDefault(keyCORSOrigins, defaultCORSOrigins)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyLogFormat, defaultLogFormat)
	v.SetDefault(keySourceURL, defaultSourceURL)
	v.SetDefault(keySourceTimeout, defaultSourceTimeout)
	v.SetDefault(keyRetryAttempts, defaultRetryAttempts)
	v.SetDefault(keyRetryBackoff, defaultRetryBackoff)
	v.SetDefault(keySourceRate, 0)
	v.SetDefault(keySourceBurst, defaultSourceBurst)
	v.SetDefault(keyRedisURL, defaultRedisURL)
	v.SetDefault(keyStreamTopic, defaultStreamTopic)
	v.SetDefault(keyStreamMaxLen, defaultStreamMaxLen)
	v.SetDefault(keyPublishLanes, defaultPublishLanes)
	v.SetDefault(keyPublishQueue, defaultPublishQueue)
	v.SetDefault(keyPublishTimeout, defaultPublishTimeout)
	v.SetDefault(keyMetricsPort, defaultMetricsPort)
	v.SetDefault(keyMetricsOn, defaultMetricsOn)
	v.SetDefault(keyOtelService, defaultOtelService)
	v.SetDefault(keyOtelInsecure, defaultOtelInsecure)
	return v
}

func (s source) str(key, defaultValue string) string {
	val := strings.TrimSpace(s.v.GetString(key))
	if val != "" {
		return val
	}
	return defaultValue
}

// duration reads a bare integer as seconds and anything else with time.ParseDuration.
// Unparseable or non-positive values fall back to defaultValue.
func (s source) duration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(s.v.GetString(key))
	if raw == "" {
		return defaultValue
	}
	var parsed time.Duration
	if secs, err := strconv.Atoi(raw); err == nil {
		parsed = time.Duration(secs) * time.Second
	} else if d, err := time.ParseDuration(raw); err == nil {
		parsed = d
	}
	if parsed <= 0 {
		return defaultValue
	}
	return parsed
}

func (s source) integer(key string, defaultValue int) int {
	val := s.v.GetInt(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// nonNegativeFloat treats unparseable or negative values as 0 (disabled).
func (s source) nonNegativeFloat(key string) float64 {
	val := s.v.GetFloat64(key)
	if val < 0 {
		return 0
	}
	return val
}

func (s source) boolean(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(s.v.GetString(key))
	if raw == "" {
		return defaultValue
	}
	if raw == "1" || strings.EqualFold(raw, "true") || strings.EqualFold(raw, "yes") {
		return true
	}
	if raw == "0" || strings.EqualFold(raw, "false") || strings.EqualFold(raw, "no") {
		return false
	}
	return defaultValue
}

func (s source) list(key, defaultValue string) []string {
	raw := s.str(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
