package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds runtime configuration for the server. It is immutable after Load.
type Config struct {
	Port               string
	PollInterval       Duration
	WorkerPoolSize     int
	MockSourceEnabled  bool
	CORSAllowedOrigins []string
	Log                LogConfig
	ScoreSource        ScoreSourceConfig
	Stream             StreamConfig
	Metrics            MetricsConfig
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and, when CONFIG_FILE is set,
// from that file. Environment variables win over file values.
func Load() (Config, error) {
	v := newSource()
	if path := strings.TrimSpace(os.Getenv(strings.ToUpper(keyConfigFile))); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	src := source{v: v}

	return Config{
		Port:               src.str(keyPort, defaultPort),
		PollInterval:       src.duration(keyPollInterval, defaultPollInterval),
		WorkerPoolSize:     src.integer(keyWorkerPool, defaultWorkerPool),
		MockSourceEnabled:  src.boolean(keyMockSource, defaultMockSource),
		CORSAllowedOrigins: src.list(keyCORSOrigins, defaultCORSOrigins),
		Log: LogConfig{
			Level:  src.str(keyLogLevel, defaultLogLevel),
			Format: src.str(keyLogFormat, defaultLogFormat),
		},
		ScoreSource: loadScoreSource(src),
		Stream:      loadStream(src),
		Metrics:     loadMetrics(src),
	}, nil
}
