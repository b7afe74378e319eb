// Package exporter ships batches of log records to an OTLP collector over gRPC,
// HTTP/protobuf, or to a Kafka topic.
//
// Export never panics and never returns an error to the scheduler: failures are
// logged through the diagnostic adapter, counted, and reported in the Result.
// A failed batch is dropped; delivery is at most once.
package exporter

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/logging"
	"github.com/hyp3rd/otlplog/pkg/record"
)

// ErrShutdown is reported for exports attempted after Shutdown.
var ErrShutdown = ewrap.New("exporter is shut down")

// Result is the outcome of one Export call.
type Result struct {
	Records int
	// Rejected counts records the collector refused in a partial success.
	Rejected int64
	Err      error
}

// Success reports whether the batch was delivered.
func (r Result) Success() bool { return r.Err == nil }

// Exporter delivers batches. Implementations must be safe to call from one
// goroutine at a time and must not panic.
type Exporter interface {
	Export(ctx context.Context, batch []record.LogRecord) Result
	Shutdown(ctx context.Context) error
}

// transport sends one serialized request and reports how many records the receiver rejected.
type transport interface {
	name() string
	send(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (int64, error)
	shutdown(ctx context.Context) error
}

type options struct {
	logger         logging.Adapter
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	dialOptions    []grpc.DialOption
	httpClient     *http.Client
	kafkaWriter    KafkaWriter
	failureLimit   rate.Limit
	failureBurst   int
}

// Option customizes an OTLPExporter.
type Option func(*options)

// WithLogger routes export diagnostics to logger.
func WithLogger(logger logging.Adapter) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider records a span per export.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider records export counters and latency.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithGRPCDialOptions appends dial options to the gRPC transport.
func WithGRPCDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOptions = append(o.dialOptions, opts...) }
}

// WithHTTPClient replaces the HTTP transport's client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithKafkaWriter replaces the Kafka transport's writer.
func WithKafkaWriter(writer KafkaWriter) Option {
	return func(o *options) { o.kafkaWriter = writer }
}

// WithFailureLogRate limits how often export failures are logged.
func WithFailureLogRate(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.failureLimit = limit
		o.failureBurst = burst
	}
}

// OTLPExporter serializes batches into OTLP export requests and hands them to a transport.
type OTLPExporter struct {
	transport   transport
	resource    *resource.Resource
	logger      logging.Adapter
	instruments *instruments
	stats       *Stats
	limiter     *rate.Limiter
	suppressed  atomic.Int64
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// New builds the exporter for the transport selected by cfg. res is attached to every request.
func New(cfg config.ExporterConfig, res *resource.Resource, opts ...Option) (*OTLPExporter, error) {
	o := options{
		logger:       logging.NewNoopAdapter(),
		failureLimit: rate.Every(time.Second),
		failureBurst: 5,
	}
	for _, opt := range opts {
		opt(&o)
	}

	headers, err := config.ResolveHeaders(cfg.Headers)
	if err != nil {
		return nil, err
	}

	tr, err := newTransport(cfg, headers, o)
	if err != nil {
		return nil, err
	}

	inst, err := newInstruments(o.tracerProvider, o.meterProvider, tr.name())
	if err != nil {
		_ = tr.shutdown(context.Background())

		return nil, err
	}

	endpoint := cfg.Endpoint
	if tr.name() == config.TransportKafka {
		endpoint = cfg.Kafka.Topic
	}

	return &OTLPExporter{
		transport:   tr,
		resource:    res,
		logger:      o.logger,
		instruments: inst,
		stats:       newStats(tr.name(), endpoint),
		limiter:     rate.NewLimiter(o.failureLimit, o.failureBurst),
	}, nil
}

func newTransport(cfg config.ExporterConfig, headers map[string]string, o options) (transport, error) {
	switch cfg.Transport() {
	case config.TransportKafka:
		return newKafkaTransport(cfg, headers, o.kafkaWriter), nil
	case config.TransportHTTP:
		return newHTTPTransport(cfg, headers, o.httpClient)
	default:
		return newGRPCTransport(cfg, headers, o.dialOptions)
	}
}

// Export serializes batch and sends it. It never panics.
func (e *OTLPExporter) Export(ctx context.Context, batch []record.LogRecord) (res Result) {
	res.Records = len(batch)
	if len(batch) == 0 {
		return res
	}

	if e.closed.Load() {
		res.Err = ErrShutdown
		e.stats.recordFailure(len(batch), res.Err)

		return res
	}

	ctx = SuppressInstrumentation(ctx)

	defer func() {
		if recovered := recover(); recovered != nil {
			res.Err = ewrap.Newf("export panicked: %v", recovered)
			e.stats.recordFailure(len(batch), res.Err)
			e.logFailure(ctx, res.Err, len(batch))
		}
	}()

	req := NewRequest(e.resource, batch)

	rejected, err := e.instruments.observe(ctx, len(batch), func(ctx context.Context) (int64, error) {
		return e.transport.send(ctx, req)
	})
	if err != nil {
		res.Err = err
		e.stats.recordFailure(len(batch), err)
		e.logFailure(ctx, err, len(batch))

		return res
	}

	res.Rejected = rejected
	e.stats.recordSuccess(len(batch), rejected)

	if rejected > 0 {
		e.logger.Warn(ctx, "collector rejected part of the batch",
			attribute.String("transport", e.transport.name()),
			attribute.Int64("rejected", rejected),
			attribute.Int("records", len(batch)),
		)
	}

	return res
}

func (e *OTLPExporter) logFailure(ctx context.Context, err error, records int) {
	if !e.limiter.Allow() {
		e.suppressed.Add(1)

		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("transport", e.transport.name()),
		attribute.Int("records", records),
	}
	if skipped := e.suppressed.Swap(0); skipped > 0 {
		attrs = append(attrs, attribute.Int64("suppressed_failures", skipped))
	}

	e.logger.Error(ctx, err, "log export failed, batch dropped", attrs...)
}

// Shutdown releases the transport. Later exports fail with ErrShutdown.
func (e *OTLPExporter) Shutdown(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)

		err := e.transport.shutdown(ctx)
		if err != nil {
			e.closeErr = ewrap.Wrapf(err, "shutdown %s transport", e.transport.name())
		}
	})

	return e.closeErr
}

// Stats exposes delivery counters.
func (e *OTLPExporter) Stats() *Stats { return e.stats }

// Transport names the transport in use.
func (e *OTLPExporter) Transport() string { return e.transport.name() }
