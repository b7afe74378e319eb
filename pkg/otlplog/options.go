package otlplog

import (
	"context"

	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/exporter"
	"github.com/hyp3rd/otlplog/pkg/logging"
	"github.com/hyp3rd/otlplog/pkg/pipeline"
	"github.com/hyp3rd/otlplog/pkg/runtime"
)

// Option mutates initialization settings.
type Option func(*options)

type options struct {
	overrideConfig *config.Config
	loaders        []config.Loader
	logger         logging.Adapter
	loggerOverride bool
	watchConfig    bool
	locator        pipeline.Locator
	processors     []pipeline.Processor
	exporterOpts   []exporter.Option
	pipelineOpts   []pipeline.Option
	runtimeOpts    []runtime.Option
}

func defaultOptions() options {
	return options{
		loaders: []config.Loader{
			config.FileLoader{},
			config.EnvLoader{},
		},
		logger:      nil,
		watchConfig: true,
	}
}

func (o options) loadConfig(ctx context.Context) (config.Config, error) {
	if o.overrideConfig != nil {
		return *o.overrideConfig, nil
	}

	return config.Load(ctx, o.loaders...)
}

// WithConfig provides a fully resolved configuration and bypasses loaders.
func WithConfig(cfg config.Config) Option {
	return func(opt *options) {
		opt.overrideConfig = &cfg
	}
}

// WithLoaders replaces the default loader chain.
func WithLoaders(loaders ...config.Loader) Option {
	return func(opt *options) {
		opt.loaders = append([]config.Loader{}, loaders...)
	}
}

// WithLogger specifies the diagnostic adapter. It wins over the logging section of the configuration.
func WithLogger(adapter logging.Adapter) Option {
	return func(opt *options) {
		opt.logger = adapter
		opt.loggerOverride = true
	}
}

// WithConfigWatcher toggles file-based config hot reload. Enabled by default.
func WithConfigWatcher(enabled bool) Option {
	return func(opt *options) {
		opt.watchConfig = enabled
	}
}

// WithLocator borrows a pipeline the host already runs instead of building one.
func WithLocator(locator pipeline.Locator) Option {
	return func(opt *options) {
		opt.locator = locator
	}
}

// WithProcessor enriches every record before it is queued.
func WithProcessor(p pipeline.Processor) Option {
	return func(opt *options) {
		if p != nil {
			opt.processors = append(opt.processors, p)
		}
	}
}

// WithExporterOptions forwards options to the OTLP exporter.
func WithExporterOptions(opts ...exporter.Option) Option {
	return func(opt *options) {
		opt.exporterOpts = append(opt.exporterOpts, opts...)
	}
}

// WithPipelineOptions forwards options to every pipeline the client builds.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(opt *options) {
		opt.pipelineOpts = append(opt.pipelineOpts, opts...)
	}
}

// WithRuntimeOptions forwards options to every self-telemetry runtime the client builds.
func WithRuntimeOptions(opts ...runtime.Option) Option {
	return func(opt *options) {
		opt.runtimeOpts = append(opt.runtimeOpts, opts...)
	}
}

func (o options) fileWatcherPath() string {
	if o.overrideConfig != nil {
		return ""
	}

	for _, loader := range o.loaders {
		if fl, ok := loader.(config.FileLoader); ok {
			if fl.Path != "" {
				return fl.Path
			}

			return config.DefaultFileName
		}
	}

	return ""
}
