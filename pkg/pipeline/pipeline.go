// Package pipeline wires the record builder, the bounded queue, the batch
// scheduler and an exporter into an asynchronous log export pipeline.
//
// Write is the only call on the application's hot path: it builds the record on
// the calling goroutine, enqueues it and returns. A single scheduler goroutine
// drains the queue on a timer, when a full batch is waiting, or on ForceFlush,
// and hands each batch to the exporter.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/otlplog/internal/constants"
	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/exporter"
	"github.com/hyp3rd/otlplog/pkg/logging"
	"github.com/hyp3rd/otlplog/pkg/queue"
	"github.com/hyp3rd/otlplog/pkg/record"
)

var configurationContext = &ewrap.ErrorContext{
	Severity: ewrap.SeverityError,
	Type:     ewrap.ErrorTypeConfiguration,
}

var (
	// ErrCreateExporter is returned when the configured transport cannot be built.
	ErrCreateExporter = ewrap.New("create log exporter").WithContext(configurationContext)
	// ErrStopped is returned by ForceFlush after Shutdown.
	ErrStopped = ewrap.New("pipeline is stopped")
)

// Pipeline is the lifecycle controller of one export pipeline.
type Pipeline struct {
	cfg       config.Config
	builder   *record.Builder
	queue     *queue.Queue[record.LogRecord]
	exporter  exporter.Exporter
	scheduler *scheduler
	logger    logging.Adapter

	procMu     sync.Mutex
	processors atomic.Pointer[[]Processor]
	loggers    sync.Map

	stopped      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error

	accepted      atomic.Int64
	afterShutdown atomic.Int64
	suppressed    atomic.Int64
	panics        atomic.Int64
	exported      atomic.Int64
	failed        atomic.Int64
	batches       atomic.Int64
	lastError     atomic.Pointer[exportFailure]
}

type exportFailure struct {
	message string
	time    time.Time
}

// New validates cfg, builds the resource, exporter and queue, and starts the scheduler.
// Configuration problems are returned as configuration errors and nothing is started.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Pipeline, error) {
	o := options{
		logger:    logging.NewNoopAdapter(),
		newTicker: defaultTickerFactory,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg = ResolveLayouts(cfg)

	err := config.Validate(cfg)
	if err != nil {
		return nil, err
	}

	recordOpts, err := RecordOptions(cfg.Record)
	if err != nil {
		return nil, err
	}

	policy, err := queue.ParsePolicy(cfg.Batch.OverflowPolicy)
	if err != nil {
		return nil, ewrap.Wrap(err, "parse overflow policy").WithContext(configurationContext)
	}

	q, err := queue.New[record.LogRecord](cfg.Batch.MaxQueueSize, policy)
	if err != nil {
		return nil, ewrap.Wrap(err, "create record queue").WithContext(configurationContext)
	}

	exp := o.exporter
	if exp == nil {
		exp, err = newOTLPExporter(cfg, o)
		if err != nil {
			return nil, err
		}
	}

	p := &Pipeline{
		cfg:      cfg,
		builder:  record.NewBuilder(recordOpts).WithClock(o.clock),
		queue:    q,
		exporter: exp,
		logger:   o.logger,
	}

	procs := append([]Processor{}, o.processors...)
	p.processors.Store(&procs)

	p.scheduler = &scheduler{
		queue:         q,
		exporter:      exp,
		logger:        o.logger,
		batchSize:     cfg.Batch.MaxExportBatchSize,
		delay:         cfg.Batch.ScheduledDelay,
		exportTimeout: cfg.Batch.ExportTimeout,
		newTicker:     o.newTicker,
		onResult:      p.recordResult,
	}
	p.scheduler.start()

	o.logger.Debug(ctx, "log pipeline started",
		attribute.String("transport", cfg.Exporter.Transport()),
		attribute.Int("max_queue_size", cfg.Batch.MaxQueueSize),
		attribute.Int("max_export_batch_size", cfg.Batch.MaxExportBatchSize),
		attribute.String("scheduled_delay", cfg.Batch.ScheduledDelay.String()),
	)

	return p, nil
}

func newOTLPExporter(cfg config.Config, o options) (exporter.Exporter, error) {
	res, err := exporter.NewResource(cfg.Service)
	if err != nil {
		return nil, ewrap.Wrap(err, "build resource").WithContext(configurationContext)
	}

	exporterOpts := append([]exporter.Option{
		exporter.WithLogger(o.logger),
		exporter.WithTracerProvider(o.tracerProvider),
		exporter.WithMeterProvider(o.meterProvider),
	}, o.exporterOpts...)

	exp, err := exporter.New(cfg.Exporter, res, exporterOpts...)
	if err != nil {
		return nil, ewrap.Wrap(ErrCreateExporter, err.Error()).WithContext(configurationContext)
	}

	return exp, nil
}

// Write builds a record from ev and queues it. It never blocks beyond the
// queue lock and never panics. Events whose context suppresses
// instrumentation and events written after Shutdown are dropped and counted.
func (p *Pipeline) Write(ev record.Event) {
	if exporter.InstrumentationSuppressed(ev.Context) {
		p.suppressed.Add(1)

		return
	}

	if p.stopped.Load() {
		p.afterShutdown.Add(1)

		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			p.panics.Add(1)
		}
	}()

	rec := p.builder.Build(ev)

	ctx := ev.Context
	if ctx == nil {
		ctx = context.Background()
	}

	for _, proc := range *p.processors.Load() {
		proc.OnEmit(ctx, &rec)
	}

	// Overflow and a concurrent Close are both counted by the queue.
	err := p.queue.Enqueue(rec)
	if err != nil {
		return
	}

	p.accepted.Add(1)

	if p.queue.Len() >= p.scheduler.batchSize {
		p.scheduler.wake()
	}
}

// AddProcessor registers proc for subsequent writes.
func (p *Pipeline) AddProcessor(proc Processor) {
	if proc == nil {
		return
	}

	p.procMu.Lock()
	defer p.procMu.Unlock()

	current := *p.processors.Load()
	next := make([]Processor, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, proc)
	p.processors.Store(&next)
}

// Logger returns the named sub-logger, creating it on first use.
func (p *Pipeline) Logger(name string) *Logger {
	if existing, ok := p.loggers.Load(name); ok {
		return existing.(*Logger)
	}

	actual, _ := p.loggers.LoadOrStore(name, NewLogger(name, p))

	return actual.(*Logger)
}

// ForceFlush waits until every record accepted before the call was handed to the
// exporter, or ctx ends. On timeout the flush keeps running in the background.
func (p *Pipeline) ForceFlush(ctx context.Context) error {
	if p.stopped.Load() {
		return ErrStopped
	}

	return p.scheduler.requestFlush(ctx)
}

// Flush is ForceFlush with a timeout, reporting success as a boolean.
// A non-positive timeout uses the default flush timeout.
func (p *Pipeline) Flush(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = constants.DefaultFlushTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return p.ForceFlush(ctx) == nil
}

// Shutdown stops accepting records, exports what is queued within ctx, and
// releases the exporter. It is idempotent; later calls return the first result.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.stopped.Store(true)
		p.queue.Close()

		var errs []error

		err := p.scheduler.stop(ctx)
		if err != nil {
			errs = append(errs, err)
		}

		err = p.exporter.Shutdown(ctx)
		if err != nil {
			errs = append(errs, ewrap.Wrap(err, "shutdown exporter"))
		}

		p.shutdownErr = errors.Join(errs...)
		if p.shutdownErr != nil {
			p.logger.Warn(ctx, "log pipeline shutdown incomplete", attribute.String("error", p.shutdownErr.Error()))
		}
	})

	return p.shutdownErr
}

// Close is Shutdown with a timeout, reporting success as a boolean.
// A non-positive timeout uses the default close timeout.
func (p *Pipeline) Close(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = constants.DefaultCloseTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return p.Shutdown(ctx) == nil
}

// State returns the scheduler state.
func (p *Pipeline) State() State { return p.scheduler.State() }

// Config returns the resolved configuration the pipeline runs with.
func (p *Pipeline) Config() config.Config { return p.cfg }

func (p *Pipeline) recordResult(res exporter.Result) {
	p.batches.Add(1)

	if res.Success() {
		p.exported.Add(int64(res.Records) - res.Rejected)
		p.failed.Add(res.Rejected)

		return
	}

	p.failed.Add(int64(res.Records))
	p.lastError.Store(&exportFailure{message: res.Err.Error(), time: time.Now().UTC()})
}
