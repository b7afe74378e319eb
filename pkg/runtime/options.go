package runtime

import (
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hyp3rd/otlplog/pkg/logging"
)

type options struct {
	state        *MetricsState
	reader       sdkmetric.Reader
	spanExporter sdktrace.SpanExporter
	logger       logging.Adapter
}

// Option customizes a Runtime.
type Option func(*options)

// WithMetricsState carries reload counters over from a previous runtime.
func WithMetricsState(state *MetricsState) Option {
	return func(o *options) { o.state = state }
}

// WithReader replaces the periodic OTLP metric reader.
func WithReader(reader sdkmetric.Reader) Option {
	return func(o *options) { o.reader = reader }
}

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithLogger sets the diagnostic adapter.
func WithLogger(logger logging.Adapter) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
