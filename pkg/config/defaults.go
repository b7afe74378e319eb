package config

import (
	"time"

	"github.com/hyp3rd/otlplog/internal/constants"
)

const (
	// OverflowDropOldest evicts the oldest queued record when the queue is full.
	OverflowDropOldest = "drop_oldest"
	// OverflowRejectNew discards the incoming record when the queue is full.
	OverflowRejectNew = "reject_new"

	defaultMetricsInterval = time.Minute
)

// DefaultConfig returns a Config populated with production-safe defaults.
func DefaultConfig() Config {
	return Config{
		Service: ServiceConfig{
			UseDefaultResources: true,
		},
		Exporter: ExporterConfig{
			Endpoint: constants.DefaultEndpoint,
			Timeout:  2 * constants.DefaultTimeout,
			Kafka: KafkaConfig{
				BatchTimeout: constants.DefaultTimeout / 5,
			},
		},
		Batch: BatchConfig{
			MaxQueueSize:       constants.DefaultMaxQueueSize,
			MaxExportBatchSize: constants.DefaultMaxExportBatchSize,
			ScheduledDelay:     constants.DefaultScheduledDelay,
			ExportTimeout:      constants.DefaultExportTimeout,
			OverflowPolicy:     OverflowDropOldest,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Adapter:     "slog",
			SampleRatio: 1.0,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:  false,
			HTTPAddr: "127.0.0.1:14271",
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			Timeout:         constants.DefaultTimeout,
			MetricsInterval: defaultMetricsInterval,
			Sampling: SamplingConfig{
				Mode:     "parentbased_always_on",
				Argument: 1.0,
			},
		},
	}
}
