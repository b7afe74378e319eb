package runtime

import (
	"context"
	"crypto/tls"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"

	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/diagnostics"
)

type exporterBundle struct {
	traceExporter  sdktrace.SpanExporter
	metricExporter sdkmetric.Exporter
	metricReader   sdkmetric.Reader
	traceStats     *traceExporterStats
	metricStats    *metricExporterStats
}

type exporterError struct {
	message string
	time    time.Time
}

type exporterStatus struct {
	protocol  string
	endpoint  string
	lastError atomic.Pointer[exporterError]
}

func (s *exporterStatus) recordError(err error) {
	if s == nil || err == nil {
		return
	}

	s.lastError.Store(&exporterError{
		message: err.Error(),
		time:    time.Now().UTC(),
	})
}

func (s *exporterStatus) statusSnapshot() diagnostics.ExporterStatus {
	status := diagnostics.ExporterStatus{
		Protocol: s.protocol,
		Endpoint: s.endpoint,
	}
	if last := s.lastError.Load(); last != nil {
		status.LastError = last.message
		status.LastErrorTime = last.time
	}

	return status
}

type traceExporterStats struct {
	exporterStatus

	dropped atomic.Int64
}

func (s *traceExporterStats) recordDrop(n int64) {
	if s == nil || n <= 0 {
		return
	}

	s.dropped.Add(n)
}

type metricExporterStats struct {
	exporterStatus
}

func newExporterBundle(ctx context.Context, cfg config.TelemetryConfig, o options) (*exporterBundle, error) {
	if cfg.Endpoint == "" && (o.reader == nil || (cfg.Traces && o.spanExporter == nil)) {
		return nil, ewrap.New("telemetry endpoint is required")
	}

	bundle := &exporterBundle{}

	if cfg.Traces {
		traceExp := o.spanExporter
		if traceExp == nil {
			exp, err := newOTLPTraceExporter(ctx, cfg)
			if err != nil {
				return nil, err
			}

			traceExp = exp
		}

		stats := &traceExporterStats{}
		stats.protocol = cfg.Protocol()
		stats.endpoint = cfg.Endpoint

		bundle.traceStats = stats
		bundle.traceExporter = &spanExporterWithStats{inner: traceExp, stats: stats}
	}

	if o.reader != nil {
		bundle.metricReader = o.reader

		return bundle, nil
	}

	metricExp, err := newOTLPMetricExporter(ctx, cfg)
	if err != nil {
		shutdownErr := bundle.shutdown(ctx)

		return nil, errors.Join(err, shutdownErr)
	}

	stats := &metricExporterStats{}
	stats.protocol = cfg.Protocol()
	stats.endpoint = cfg.Endpoint

	bundle.metricStats = stats
	bundle.metricExporter = &metricExporterWithStats{inner: metricExp, stats: stats}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricsInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricsInterval))
	}

	bundle.metricReader = sdkmetric.NewPeriodicReader(bundle.metricExporter, readerOpts...)

	return bundle, nil
}

// shutdown releases the exporters when construction fails before the
// providers take ownership of them.
func (b *exporterBundle) shutdown(ctx context.Context) error {
	var errs []error

	if b.traceExporter != nil {
		err := b.traceExporter.Shutdown(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if b.metricExporter != nil {
		err := b.metricExporter.Shutdown(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func newOTLPTraceExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	if cfg.UseHTTP {
		opts, err := otlpHTTPOptions(cfg)
		if err != nil {
			return nil, err
		}

		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, ewrap.Wrap(err, "create otlp http trace exporter")
		}

		return exp, nil
	}

	opts, err := otlpGRPCOptions(cfg)
	if err != nil {
		return nil, err
	}

	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, ewrap.Wrap(err, "create otlp grpc trace exporter")
	}

	return exp, nil
}

func newOTLPMetricExporter(ctx context.Context, cfg config.TelemetryConfig) (sdkmetric.Exporter, error) {
	if cfg.UseHTTP {
		opts, err := otlpMetricHTTPOptions(cfg)
		if err != nil {
			return nil, err
		}

		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, ewrap.Wrap(err, "create otlp http metric exporter")
		}

		return exp, nil
	}

	opts, err := otlpMetricGRPCOptions(cfg)
	if err != nil {
		return nil, err
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, ewrap.Wrap(err, "create otlp grpc metric exporter")
	}

	return exp, nil
}

// telemetryTLS returns nil when TLS is not configured, letting the SDK use system roots.
func telemetryTLS(cfg config.TelemetryConfig) (*tls.Config, error) {
	tlsCfg, err := cfg.TLS.Build()
	if err != nil && !errors.Is(err, config.ErrTLSNotEnabled) {
		return nil, ewrap.Wrap(err, "build telemetry tls config")
	}

	return tlsCfg, nil
}

func otlpGRPCOptions(cfg config.TelemetryConfig) ([]otlptracegrpc.Option, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Target()),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		tlsCfg, err := telemetryTLS(cfg)
		if err != nil {
			return nil, err
		}

		if tlsCfg != nil {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
		}
	}

	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}

	if cfg.Gzip() {
		opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
	}

	return opts, nil
}

func otlpMetricGRPCOptions(cfg config.TelemetryConfig) ([]otlpmetricgrpc.Option, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Target()),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	} else {
		tlsCfg, err := telemetryTLS(cfg)
		if err != nil {
			return nil, err
		}

		if tlsCfg != nil {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
		}
	}

	if cfg.Timeout > 0 {
		opts = append(opts, otlpmetricgrpc.WithTimeout(cfg.Timeout))
	}

	if cfg.Gzip() {
		opts = append(opts, otlpmetricgrpc.WithCompressor("gzip"))
	}

	return opts, nil
}

func otlpHTTPOptions(cfg config.TelemetryConfig) ([]otlptracehttp.Option, error) {
	return buildHTTPOptions(cfg, httpOptionFactory[otlptracehttp.Option]{
		withEndpoint: otlptracehttp.WithEndpoint,
		withInsecure: otlptracehttp.WithInsecure,
		withTLS:      otlptracehttp.WithTLSClientConfig,
		withTimeout:  otlptracehttp.WithTimeout,
		withGzip: func() otlptracehttp.Option {
			return otlptracehttp.WithCompression(otlptracehttp.GzipCompression)
		},
	})
}

func otlpMetricHTTPOptions(cfg config.TelemetryConfig) ([]otlpmetrichttp.Option, error) {
	return buildHTTPOptions(cfg, httpOptionFactory[otlpmetrichttp.Option]{
		withEndpoint: otlpmetrichttp.WithEndpoint,
		withInsecure: otlpmetrichttp.WithInsecure,
		withTLS:      otlpmetrichttp.WithTLSClientConfig,
		withTimeout:  otlpmetrichttp.WithTimeout,
		withGzip: func() otlpmetrichttp.Option {
			return otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression)
		},
	})
}

type httpOptionFactory[T any] struct {
	withEndpoint func(string) T
	withInsecure func() T
	withTLS      func(*tls.Config) T
	withTimeout  func(time.Duration) T
	withGzip     func() T
}

func buildHTTPOptions[T any](cfg config.TelemetryConfig, factory httpOptionFactory[T]) ([]T, error) {
	opts := []T{factory.withEndpoint(cfg.Target())}
	if cfg.Insecure {
		opts = append(opts, factory.withInsecure())
	} else {
		tlsCfg, err := telemetryTLS(cfg)
		if err != nil {
			return nil, err
		}

		if tlsCfg != nil {
			opts = append(opts, factory.withTLS(tlsCfg))
		}
	}

	if cfg.Timeout > 0 {
		opts = append(opts, factory.withTimeout(cfg.Timeout))
	}

	if cfg.Gzip() {
		opts = append(opts, factory.withGzip())
	}

	return opts, nil
}

type spanExporterWithStats struct {
	inner sdktrace.SpanExporter
	stats *traceExporterStats
}

func (s *spanExporterWithStats) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if s == nil || s.inner == nil {
		return nil
	}

	err := s.inner.ExportSpans(ctx, spans)
	if err != nil {
		if s.stats != nil {
			s.stats.recordDrop(int64(len(spans)))
			s.stats.recordError(err)
		}

		return ewrap.Wrap(err, "export spans")
	}

	return nil
}

func (s *spanExporterWithStats) Shutdown(ctx context.Context) error {
	if s == nil || s.inner == nil {
		return nil
	}

	err := s.inner.Shutdown(ctx)
	if err != nil {
		return ewrap.Wrap(err, "shutdown span exporter")
	}

	return nil
}

type metricExporterWithStats struct {
	inner sdkmetric.Exporter
	stats *metricExporterStats
}

func (m *metricExporterWithStats) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return m.inner.Temporality(kind)
}

func (m *metricExporterWithStats) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return m.inner.Aggregation(kind)
}

func (m *metricExporterWithStats) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	err := m.inner.Export(ctx, rm)
	if err != nil {
		m.stats.recordError(err)

		return ewrap.Wrap(err, "export metrics")
	}

	return nil
}

func (m *metricExporterWithStats) ForceFlush(ctx context.Context) error {
	err := m.inner.ForceFlush(ctx)
	if err != nil {
		return ewrap.Wrap(err, "flush metrics")
	}

	return nil
}

func (m *metricExporterWithStats) Shutdown(ctx context.Context) error {
	err := m.inner.Shutdown(ctx)
	if err != nil {
		return ewrap.Wrap(err, "shutdown metric exporter")
	}

	return nil
}
