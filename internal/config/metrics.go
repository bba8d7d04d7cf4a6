package config

// MetricsConfig controls telemetry export settings.
type MetricsConfig struct {
	Enabled      bool
	Port         string
	OtlpEndpoint string
	ServiceName  string
	OtlpInsecure bool
}

func loadMetrics(src source) MetricsConfig {
	return MetricsConfig{
		Enabled:      src.boolean(keyMetricsOn, defaultMetricsOn),
		Port:         src.str(keyMetricsPort, defaultMetricsPort),
		OtlpEndpoint: src.str(keyOtelEndpoint, ""),
		ServiceName:  src.str(keyOtelService, defaultOtelService),
		OtlpInsecure: src.boolean(keyOtelInsecure, defaultOtelInsecure),
	}
}
