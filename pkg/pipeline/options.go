package pipeline

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/otlplog/pkg/exporter"
	"github.com/hyp3rd/otlplog/pkg/logging"
)

type options struct {
	logger         logging.Adapter
	exporter       exporter.Exporter
	exporterOpts   []exporter.Option
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	processors     []Processor
	newTicker      tickerFactory
	clock          func() time.Time
}

// Option customizes a Pipeline.
type Option func(*options)

// WithLogger sets the diagnostic adapter used by the pipeline and its exporter.
func WithLogger(logger logging.Adapter) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithExporter replaces the configured OTLP exporter.
func WithExporter(exp exporter.Exporter) Option {
	return func(o *options) { o.exporter = exp }
}

// WithExporterOptions forwards options to the OTLP exporter built from configuration.
func WithExporterOptions(opts ...exporter.Option) Option {
	return func(o *options) { o.exporterOpts = append(o.exporterOpts, opts...) }
}

// WithTracerProvider traces export cycles.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider records export metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithProcessor registers a processor at construction time.
func WithProcessor(p Processor) Option {
	return func(o *options) {
		if p != nil {
			o.processors = append(o.processors, p)
		}
	}
}

func withTickerFactory(factory tickerFactory) Option {
	return func(o *options) { o.newTicker = factory }
}

func withClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}
