package config

import (
	"time"

	"github.com/hyp3rd/ewrap"
)

// Validate asserts that the config meets baseline expectations.
//
//nolint:revive // cyclomatic: a flat list of checks reads better than helpers.
func Validate(cfg Config) error {
	if cfg.Exporter.Endpoint == "" && !cfg.Exporter.Kafka.Enabled {
		return invalidConfigError("exporter.endpoint is required")
	}

	if cfg.Exporter.Kafka.Enabled {
		if len(cfg.Exporter.Kafka.Brokers) == 0 {
			return invalidConfigError("exporter.kafka.brokers is required when kafka is enabled")
		}

		if cfg.Exporter.Kafka.Topic == "" {
			return invalidConfigError("exporter.kafka.topic is required when kafka is enabled")
		}
	}

	_, err := ParseHeaders(cfg.Exporter.Headers)
	if err != nil {
		return ewrap.Wrap(ErrParseHeaders, err.Error())
	}

	batch := cfg.Batch
	if batch.MaxQueueSize <= 0 {
		return invalidConfigError("batch.max_queue_size must be positive, got %d", batch.MaxQueueSize)
	}

	if batch.MaxExportBatchSize <= 0 || batch.MaxExportBatchSize > batch.MaxQueueSize {
		return invalidConfigError("batch.max_export_batch_size must be within (0,%d], got %d",
			batch.MaxQueueSize, batch.MaxExportBatchSize)
	}

	if batch.ScheduledDelay < time.Millisecond {
		return invalidConfigError("batch.scheduled_delay must be at least 1ms, got %s", batch.ScheduledDelay)
	}

	if batch.ExportTimeout < time.Millisecond {
		return invalidConfigError("batch.export_timeout must be at least 1ms, got %s", batch.ExportTimeout)
	}

	if cfg.Exporter.Timeout != 0 && cfg.Exporter.Timeout < time.Millisecond {
		return invalidConfigError("exporter.timeout must be zero or at least 1ms, got %s", cfg.Exporter.Timeout)
	}

	switch batch.OverflowPolicy {
	case OverflowDropOldest, OverflowRejectNew:
	default:
		return invalidConfigError("unsupported batch.overflow_policy %q", batch.OverflowPolicy)
	}

	_, err = ParseKeyValues(cfg.Service.Resources)
	if err != nil {
		return ewrap.Wrap(ErrParseResources, err.Error())
	}

	_, err = ParseKeyValues(cfg.Record.Attributes)
	if err != nil {
		return ewrap.Wrap(ErrParseAttributes, err.Error())
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Sampling.Mode {
		case "always_on", "always_off", "parentbased_always_on", "parentbased_always_off", "trace_id_ratio":
		default:
			return invalidConfigError("unsupported telemetry.sampling.mode %q", cfg.Telemetry.Sampling.Mode)
		}
	}

	return nil
}

func invalidConfigError(format string, args ...any) error {
	return ewrap.Newf("invalid configuration: "+format, args...).WithContext(
		&ewrap.ErrorContext{
			Severity: ewrap.SeverityError,
			Type:     ewrap.ErrorTypeConfiguration,
		},
	)
}
