package config

import "time"

const (
	keyConfigFile     = "config_file"
	keyPort           = "port"
	keyPollInterval   = "poll_interval"
	keyWorkerPool     = "worker_pool_size"
	keyMockSource     = "mock_source_enabled"
	keyCORSOrigins    = "cors_allowed_origins"
	keyLogLevel       = "log_level"
	keyLogFormat      = "log_format"
	keySourceURL      = "score_source_url"
	keySourceTimeout  = "score_source_timeout"
	keyRetryAttempts  = "score_retry_attempts"
	keyRetryBackoff   = "score_retry_backoff"
	keySourceRate     = "score_source_rate_limit"
	keySourceBurst    = "score_source_rate_burst"
	keyRedisURL       = "redis_url"
	keyStreamTopic    = "stream_topic"
	keyStreamMaxLen   = "stream_max_len"
	keyPublishLanes   = "publish_lanes"
	keyPublishQueue   = "publish_queue_size"
	keyPublishTimeout = "publish_timeout"
	keyMetricsPort    = "metrics_port"
	keyMetricsOn      = "metrics_enabled"
	keyOtelEndpoint   = "otel_exporter_otlp_endpoint"
	keyOtelService    = "otel_service_name"
	keyOtelInsecure   = "otel_exporter_otlp_insecure"

	defaultPort         = "4000"
	defaultPollInterval = 10 * Duration(time.Second)
	defaultWorkerPool   = 5
	defaultMockSource   = true
	defaultCORSOrigins  = "*"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	// Points at the built-in mock endpoint so a bare checkout polls something.
	defaultSourceURL      = "http://localhost:4000/mock-event-api/{eventId}"
	defaultSourceTimeout  = 5 * Duration(time.Second)
	defaultRetryAttempts  = 3
	defaultRetryBackoff   = 3 * Duration(time.Second)
	defaultSourceBurst    = 1
	defaultRedisURL       = "redis://localhost:6379/0"
	defaultStreamTopic    = "sports-events"
	defaultStreamMaxLen   = 10000
	defaultPublishLanes   = 4
	defaultPublishQueue   = 256
	defaultPublishTimeout = 5 * Duration(time.Second)
	defaultMetricsPort    = "9090"
	defaultMetricsOn      = true
	defaultOtelService    = "live-score-service"
	defaultOtelInsecure   = true
)
