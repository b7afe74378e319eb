// Package otlplog wires configuration, self-telemetry, the export pipeline and
// diagnostics into a single client, with hot reload of the configuration file.
package otlplog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"

	"github.com/hyp3rd/otlplog/internal/constants"
	"github.com/hyp3rd/otlplog/pkg/bridge"
	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/diagnostics"
	"github.com/hyp3rd/otlplog/pkg/logging"
	"github.com/hyp3rd/otlplog/pkg/pipeline"
	"github.com/hyp3rd/otlplog/pkg/record"
	"github.com/hyp3rd/otlplog/pkg/runtime"
)

// Client provides access to the active pipeline and runtime. Loggers and bridges
// obtained from it keep working across configuration reloads.
type Client struct {
	mu      sync.RWMutex
	runtime *runtime.Runtime
	handle  *pipeline.Handle
	cfg     config.Config
	digest  string
	logger  logging.Adapter
	closed  bool

	// lifecycle serializes reloads with Shutdown and guards enriched.
	lifecycle sync.Mutex
	enriched  pipeline.Provider

	opts      options
	counters  *runtime.MetricsState
	startTime time.Time

	diagMu      sync.Mutex
	diagnostics *diagnostics.Server
	diagCancel  context.CancelFunc
	watchCancel context.CancelFunc

	shutdownOnce sync.Once
	shutdownErr  error
}

var (
	_ pipeline.Writer              = (*Client)(nil)
	_ diagnostics.SnapshotProvider = (*Client)(nil)
	_ diagnostics.Flusher          = (*Client)(nil)
)

// Init loads the configuration, builds the pipeline and its self-telemetry and
// starts the optional diagnostics server and config watcher.
// Callers must invoke Shutdown when finished.
func Init(ctx context.Context, opts ...Option) (*Client, error) {
	settings := defaultOptions()
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := settings.loadConfig(ctx)
	if err != nil {
		return nil, ewrap.Wrap(err, "load config")
	}

	client := &Client{
		opts:      settings,
		counters:  runtime.NewMetricsState(),
		startTime: time.Now().UTC(),
	}
	client.applyLogging(cfg.Logging)

	rt, handle, err := client.build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client.runtime = rt
	client.handle = handle
	client.cfg = cfg
	client.digest = client.digestOf(ctx, cfg)

	if cfg.Diagnostics.Enabled {
		err = client.startDiagnostics(ctx, cfg.Diagnostics, rt)
		if err != nil {
			client.log().Error(ctx, err, "diagnostics server disabled")
		}
	}

	err = client.startConfigWatcher(ctx)
	if err != nil {
		client.log().Error(ctx, err, "config watcher disabled")
	}

	return client, nil
}

// build creates a runtime and a pipeline wired to its providers. On failure
// nothing is left running.
func (c *Client) build(ctx context.Context, cfg config.Config) (*runtime.Runtime, *pipeline.Handle, error) {
	logger := c.log()

	runtimeOpts := append([]runtime.Option{
		runtime.WithMetricsState(c.counters),
		runtime.WithLogger(logger),
	}, c.opts.runtimeOpts...)

	rt, err := runtime.New(ctx, cfg, runtimeOpts...)
	if err != nil {
		return nil, nil, ewrap.Wrap(err, "init runtime")
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithTracerProvider(rt.TracerProvider()),
		pipeline.WithMeterProvider(rt.MeterProvider()),
		pipeline.WithExporterOptions(c.opts.exporterOpts...),
	}
	for _, proc := range c.opts.processors {
		pipelineOpts = append(pipelineOpts, pipeline.WithProcessor(proc))
	}

	pipelineOpts = append(pipelineOpts, c.opts.pipelineOpts...)

	handle, err := pipeline.Resolve(ctx, c.opts.locator, cfg, pipelineOpts...)
	if err != nil {
		c.release(ctx, rt, nil)

		return nil, nil, ewrap.Wrap(err, "init pipeline")
	}

	// A borrowed pipeline was built without our processors.
	if !handle.Owned() && handle.Provider != c.enriched {
		for _, proc := range c.opts.processors {
			handle.AddProcessor(proc)
		}

		c.enriched = handle.Provider
	}

	if src, ok := handle.Provider.(runtime.SnapshotSource); ok {
		err = rt.Observe(src)
		if err != nil {
			logger.Error(ctx, err, "pipeline metrics disabled")
		}
	}

	logger.Debug(ctx, "pipeline ready",
		attribute.Bool("owned", handle.Owned()),
		attribute.Bool("telemetry", cfg.Telemetry.Enabled),
	)

	return rt, handle, nil
}

func (c *Client) applyLogging(cfg config.LoggingConfig) {
	logger := c.opts.logger
	if !c.opts.loggerOverride {
		logger = logging.FromConfig(cfg)
	}

	if logger == nil {
		logger = logging.NewNoopAdapter()
	}

	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()

	logging.RedirectOTel(logger, otelVerbosity(cfg.Level))
}

func (c *Client) log() logging.Adapter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.logger
}

func (c *Client) current() (*runtime.Runtime, *pipeline.Handle) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.runtime, c.handle
}

// Write hands ev to the active pipeline.
func (c *Client) Write(ev record.Event) {
	_, handle := c.current()

	if w, ok := handle.Provider.(pipeline.Writer); ok {
		w.Write(ev)

		return
	}

	handle.Logger(ev.LoggerName).Write(ev)
}

// Logger returns a named logger bound to the client.
func (c *Client) Logger(name string) *pipeline.Logger {
	return pipeline.NewLogger(name, c)
}

// SlogHandler returns a slog.Handler writing through the client.
func (c *Client) SlogHandler(name string, level slog.Leveler) *bridge.Handler {
	return bridge.NewHandler(c, name, level)
}

// ZapCore returns a zapcore.Core writing through the client. Sync flushes the pipeline.
func (c *Client) ZapCore(name string, enab zapcore.LevelEnabler) *bridge.Core {
	return bridge.NewCore(c, name, enab)
}

// Logr returns a logr.Logger writing through the client.
func (c *Client) Logr(name string, verbosity int) logr.Logger {
	return bridge.NewLogger(c, name, verbosity)
}

// ForceFlush exports every queued record of the active pipeline.
func (c *Client) ForceFlush(ctx context.Context) error {
	_, handle := c.current()

	return handle.ForceFlush(ctx)
}

// Flush is ForceFlush bounded by timeout. It reports whether the flush completed.
func (c *Client) Flush(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = constants.DefaultFlushTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return c.ForceFlush(ctx) == nil
}

// Shutdown stops watchers and diagnostics, drains an owned pipeline (a borrowed
// one is only flushed) and flushes self-telemetry. A reload in progress completes
// first; later reloads are ignored.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		if c.watchCancel != nil {
			c.watchCancel()
		}

		c.lifecycle.Lock()
		defer c.lifecycle.Unlock()

		c.mu.Lock()
		c.closed = true
		rt, handle := c.runtime, c.handle
		c.mu.Unlock()

		var errs []error

		err := c.stopDiagnostics(ctx)
		if err != nil {
			errs = append(errs, err)
		}

		err = handle.Shutdown(ctx)
		if err != nil {
			errs = append(errs, err)
		}

		err = rt.Shutdown(ctx)
		if err != nil {
			errs = append(errs, err)
		}

		c.shutdownErr = errors.Join(errs...)
	})

	return c.shutdownErr
}

// Close is Shutdown bounded by timeout. It reports whether shutdown completed cleanly.
func (c *Client) Close(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = constants.DefaultCloseTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return c.Shutdown(ctx) == nil
}

// Pipeline exposes the active pipeline handle for advanced integrations.
func (c *Client) Pipeline() *pipeline.Handle {
	_, handle := c.current()

	return handle
}

// Runtime exposes the active self-telemetry runtime.
func (c *Client) Runtime() *runtime.Runtime {
	rt, _ := c.current()

	return rt
}

// Config returns the active configuration snapshot.
func (c *Client) Config() config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cfg
}

// Snapshot implements diagnostics.SnapshotProvider.
func (c *Client) Snapshot() diagnostics.Snapshot {
	c.mu.RLock()
	rt, handle, cfg := c.runtime, c.handle, c.cfg
	c.mu.RUnlock()

	snap := diagnostics.Snapshot{
		ServiceName:       cfg.Service.Name,
		ServiceVersion:    cfg.Service.Version,
		Environment:       cfg.Service.Environment,
		Endpoint:          cfg.Exporter.Endpoint,
		StartTime:         c.startTime,
		LastReloadTime:    c.counters.LastReload(),
		ConfigReloadCount: c.counters.ConfigReloads(),
		Telemetry:         rt.Status(),
	}

	if src, ok := handle.Provider.(runtime.SnapshotSource); ok {
		snap.Pipeline = src.Snapshot()
	}

	return snap
}

func (c *Client) startDiagnostics(ctx context.Context, cfg config.DiagnosticsConfig, rt *runtime.Runtime) error {
	server := diagnostics.NewServer(cfg, c, c, c.log(),
		diagnostics.WithTelemetry(rt.TracerProvider(), rt.MeterProvider()))

	diagCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	err := server.Start(diagCtx)
	if err != nil {
		cancel()

		return err
	}

	c.diagMu.Lock()
	c.diagnostics = server
	c.diagCancel = cancel
	c.diagMu.Unlock()

	return nil
}

func (c *Client) stopDiagnostics(ctx context.Context) error {
	c.diagMu.Lock()
	server, cancel := c.diagnostics, c.diagCancel
	c.diagnostics, c.diagCancel = nil, nil
	c.diagMu.Unlock()

	if server == nil {
		return nil
	}

	cancel()

	return server.Shutdown(ctx)
}

// release shuts down a runtime and pipeline that are no longer active.
func (c *Client) release(ctx context.Context, rt *runtime.Runtime, handle *pipeline.Handle) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
	defer cancel()

	if handle != nil {
		err := handle.Shutdown(shutdownCtx)
		if err != nil {
			c.log().Error(shutdownCtx, err, "shutdown previous pipeline")
		}
	}

	if rt != nil {
		err := rt.Shutdown(shutdownCtx)
		if err != nil {
			c.log().Error(shutdownCtx, err, "shutdown previous runtime")
		}
	}
}

// otelVerbosity maps the diagnostic level onto the logr verbosity of the OTel SDK logger.
func otelVerbosity(level string) int {
	switch level {
	case "debug":
		return 8
	case "info":
		return 4
	default:
		return 1
	}
}
