package config

// StreamConfig controls the downstream message stream.
type StreamConfig struct {
	RedisURL       string
	Topic          string
	MaxLen         int64
	Lanes          int
	QueueSize      int
	PublishTimeout Duration
}

func loadStream(src source) StreamConfig {
	return StreamConfig{
		RedisURL:       src.str(keyRedisURL, defaultRedisURL),
		Topic:          src.str(keyStreamTopic, defaultStreamTopic),
		MaxLen:         int64(src.integer(keyStreamMaxLen, defaultStreamMaxLen)),
		Lanes:          src.integer(keyPublishLanes, defaultPublishLanes),
		QueueSize:      src.integer(keyPublishQueue, defaultPublishQueue),
		PublishTimeout: src.duration(keyPublishTimeout, defaultPublishTimeout),
	}
}
