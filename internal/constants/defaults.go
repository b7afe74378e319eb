// Package constants provides common constants used across the otlplog project.
package constants

import "time"

const (
	// DefaultTimeout is the default timeout for requests.
	DefaultTimeout = 5 * time.Second
	// DefaultShutdownTimeout is the default timeout for shutdown operations.
	DefaultShutdownTimeout = 30 * time.Second
	// DefaultExportTimeout bounds a single export call.
	DefaultExportTimeout = 30 * time.Second
	// DefaultFlushTimeout is used when a host asks for a flush without a deadline.
	DefaultFlushTimeout = 15 * time.Second
	// DefaultCloseTimeout is used when a host closes the pipeline without a deadline.
	DefaultCloseTimeout = time.Second
	// DefaultScheduledDelay is the interval between two periodic export cycles.
	DefaultScheduledDelay = 5 * time.Second

	// DefaultMaxQueueSize is the capacity of the record queue.
	DefaultMaxQueueSize = 2048
	// DefaultMaxExportBatchSize is the largest batch handed to the exporter.
	DefaultMaxExportBatchSize = 512

	// DefaultEndpoint is the collector address used when none is configured.
	DefaultEndpoint = "http://localhost:4317"
)

const (
	// DefaultRetryAttempts is how many times a failed self-telemetry start is retried.
	DefaultRetryAttempts = 3
	// DefaultRetryDelay is the pause between those retries.
	DefaultRetryDelay = 100 * time.Millisecond
)
