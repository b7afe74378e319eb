// Package runtime manages the self-telemetry of a log pipeline: the OpenTelemetry
// tracer and meter providers that report on export cycles, queue depth and drops.
package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/diagnostics"
	"github.com/hyp3rd/otlplog/pkg/exporter"
	"github.com/hyp3rd/otlplog/pkg/logging"
)

// Runtime encapsulates the self-telemetry providers and lifecycle hooks.
type Runtime struct {
	cfg config.Config

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	exporters      *exporterBundle
	metrics        *runtimeMetricsController
	counters       *MetricsState
	logger         logging.Adapter
	startTime      time.Time

	mu    sync.RWMutex
	state runtimeState
	once  sync.Once
}

type runtimeState struct {
	shutdown bool
}

// New creates a Runtime from the telemetry section of cfg. When telemetry is
// disabled the runtime hands out no-op providers.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Runtime, error) {
	o := options{logger: logging.NewNoopAdapter()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.state == nil {
		o.state = NewMetricsState()
	}

	rt := &Runtime{
		cfg:       cfg,
		counters:  o.state,
		logger:    o.logger,
		startTime: time.Now().UTC(),
	}

	if !cfg.Telemetry.Enabled {
		return rt, nil
	}

	telemetry := cfg.ResolvedTelemetry()

	res, err := exporter.NewResource(cfg.Service)
	if err != nil {
		return nil, ewrap.Wrap(err, "build resource")
	}

	bundle, err := newExporterBundle(ctx, telemetry, o)
	if err != nil {
		return nil, ewrap.Wrap(err, "build exporters")
	}

	rt.exporters = bundle

	if bundle.traceExporter != nil {
		tp, err := buildTracerProvider(telemetry, res, bundle.traceExporter)
		if err != nil {
			shutdownErr := bundle.shutdown(ctx)
			if shutdownErr != nil {
				rt.logger.Error(ctx, shutdownErr, "release telemetry exporters")
			}

			return nil, ewrap.Wrap(err, "build tracer provider")
		}

		rt.tracerProvider = tp
	}

	rt.meterProvider = buildMeterProvider(res, bundle.metricReader)

	return rt, nil
}

// Config returns a copy of the configuration the runtime was built from.
func (r *Runtime) Config() config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.cfg
}

// TracerProvider returns the provider used to trace export cycles.
func (r *Runtime) TracerProvider() trace.TracerProvider {
	if r.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}

	return r.tracerProvider
}

// MeterProvider returns the provider used for export and pipeline metrics.
func (r *Runtime) MeterProvider() metric.MeterProvider {
	if r.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}

	return r.meterProvider
}

// MetricsState returns the counters that persist across reloads.
func (r *Runtime) MetricsState() *MetricsState { return r.counters }

// Observe publishes the pipeline counters from src as observable instruments,
// together with Go runtime metrics when enabled.
func (r *Runtime) Observe(src SnapshotSource) error {
	if r.meterProvider == nil || src == nil {
		return nil
	}

	controller := &runtimeMetricsController{state: r.counters}

	err := controller.start(r.meterProvider, src, r.cfg.Telemetry.RuntimeMetrics)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.metrics = controller
	r.mu.Unlock()

	return nil
}

// Shutdown releases resources and flushes telemetry.
//
//nolint:revive // cognitive-complexity: this is acceptable for a shutdown function. Breaking it up would reduce clarity.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var shutdownErr error

	r.once.Do(func() {
		var errs []error

		r.mu.RLock()
		controller := r.metrics
		r.mu.RUnlock()

		err := controller.shutdown()
		if err != nil {
			errs = append(errs, err)
		}

		if r.tracerProvider != nil {
			err := r.tracerProvider.Shutdown(ctx)
			if err != nil {
				errs = append(errs, err)
			}
		}

		if r.meterProvider != nil {
			err := r.meterProvider.Shutdown(ctx)
			if err != nil {
				errs = append(errs, err)
			}
		}

		if len(errs) > 0 {
			shutdownErr = errors.Join(errs...)
		}

		r.mu.Lock()
		r.state.shutdown = true
		r.mu.Unlock()
	})

	if shutdownErr != nil {
		return ewrap.Wrap(shutdownErr, "shutdown runtime")
	}

	return nil
}

// IsShutdown indicates whether the runtime has been terminated.
func (r *Runtime) IsShutdown() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.shutdown
}

// Status reports the self-telemetry health for diagnostics.
func (r *Runtime) Status() diagnostics.TelemetryStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := diagnostics.TelemetryStatus{
		Enabled:        r.cfg.Telemetry.Enabled,
		RuntimeMetrics: r.cfg.Telemetry.Enabled && r.cfg.Telemetry.RuntimeMetrics,
	}

	if r.cfg.Telemetry.Enabled && r.cfg.Telemetry.Traces {
		status.SamplingMode = r.cfg.Telemetry.Sampling.Mode
	}

	if r.exporters == nil {
		return status
	}

	if stats := r.exporters.traceStats; stats != nil {
		status.DroppedSpans = stats.dropped.Load()
		status.TraceExporter = stats.statusSnapshot()
	}

	if stats := r.exporters.metricStats; stats != nil {
		status.MetricExporter = stats.statusSnapshot()
	}

	return status
}

// StartTime returns when the runtime was built.
func (r *Runtime) StartTime() time.Time { return r.startTime }

func buildTracerProvider(cfg config.TelemetryConfig, res *resource.Resource, traceExp sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	sampler, err := samplerFromConfig(cfg.Sampling)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
		exporterSpanProcessor(cfg, traceExp),
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

func buildMeterProvider(res *resource.Resource, reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	options := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}
	if reader != nil {
		options = append(options, sdkmetric.WithReader(reader))
	}

	return sdkmetric.NewMeterProvider(options...)
}

func exporterSpanProcessor(cfg config.TelemetryConfig, spanExp sdktrace.SpanExporter) sdktrace.TracerProviderOption {
	var opts []sdktrace.BatchSpanProcessorOption
	if cfg.Timeout > 0 {
		opts = append(opts, sdktrace.WithExportTimeout(cfg.Timeout))
	}

	return sdktrace.WithBatcher(spanExp, opts...)
}

func samplerFromConfig(cfg config.SamplingConfig) (sdktrace.Sampler, error) {
	switch cfg.Mode {
	case "always_on":
		return sdktrace.AlwaysSample(), nil
	case "always_off":
		return sdktrace.NeverSample(), nil
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample()), nil
	case "trace_id_ratio":
		if cfg.Argument <= 0 || cfg.Argument > 1 {
			return nil, ewrap.Newf("sampling.argument must be within (0,1], got %f", cfg.Argument)
		}

		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Argument)), nil
	default:
		return nil, ewrap.Newf("unsupported sampling mode %q", cfg.Mode)
	}
}
