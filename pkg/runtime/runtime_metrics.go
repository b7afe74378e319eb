package runtime

import (
	"context"

	"github.com/hyp3rd/ewrap"
	runtimemetrics "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hyp3rd/otlplog/internal/constants"
	"github.com/hyp3rd/otlplog/pkg/pipeline"
)

const meterName = "github.com/hyp3rd/otlplog/runtime"

// SnapshotSource supplies the pipeline counters to observe.
type SnapshotSource interface {
	Snapshot() pipeline.Snapshot
}

type runtimeMetricsController struct {
	state        *MetricsState
	registration metric.Registration
}

func (c *runtimeMetricsController) start(provider metric.MeterProvider, src SnapshotSource, goRuntime bool) error {
	if goRuntime {
		err := runtimemetrics.Start(
			runtimemetrics.WithMeterProvider(provider),
		)
		if err != nil {
			return ewrap.Wrap(err, "start runtime metrics", ewrap.WithRetry(constants.DefaultRetryAttempts, constants.DefaultRetryDelay))
		}
	}

	instruments, err := newPipelineInstruments(provider)
	if err != nil {
		return err
	}

	reg, err := instruments.registerCallback(src, c.state)
	if err != nil {
		return err
	}

	c.registration = reg

	return nil
}

func (c *runtimeMetricsController) shutdown() error {
	if c == nil {
		return nil
	}

	if c.registration != nil {
		err := c.registration.Unregister()
		if err != nil {
			return ewrap.Wrap(
				err,
				"unregister pipeline metrics",
				ewrap.WithRetry(constants.DefaultRetryAttempts, constants.DefaultRetryDelay),
			)
		}
	}

	return nil
}

type pipelineInstruments struct {
	meter         metric.Meter
	configReloads metric.Int64ObservableCounter
	queueSize     metric.Int64ObservableGauge
	queueCapacity metric.Int64ObservableGauge
	accepted      metric.Int64ObservableCounter
	dropped       metric.Int64ObservableCounter
	exported      metric.Int64ObservableCounter
	failed        metric.Int64ObservableCounter
}

func newPipelineInstruments(provider metric.MeterProvider) (*pipelineInstruments, error) {
	meter := provider.Meter(meterName)

	configReloads, err := meter.Int64ObservableCounter(
		"otlplog.config.reloads",
		metric.WithDescription("Cumulative number of configuration reloads applied"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create config reloads counter")
	}

	queueSize, err := meter.Int64ObservableGauge(
		"otlplog.queue.size",
		metric.WithDescription("Records waiting in the export queue"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create queue size gauge")
	}

	queueCapacity, err := meter.Int64ObservableGauge(
		"otlplog.queue.capacity",
		metric.WithDescription("Configured capacity of the export queue"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create queue capacity gauge")
	}

	accepted, err := meter.Int64ObservableCounter(
		"otlplog.records.accepted",
		metric.WithDescription("Cumulative number of records accepted into the queue"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create accepted records counter")
	}

	dropped, err := meter.Int64ObservableCounter(
		"otlplog.records.dropped",
		metric.WithDescription("Cumulative number of records dropped before export, by reason"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create dropped records counter")
	}

	exported, err := meter.Int64ObservableCounter(
		"otlplog.records.exported",
		metric.WithDescription("Cumulative number of records the collector accepted"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create exported records counter")
	}

	failed, err := meter.Int64ObservableCounter(
		"otlplog.records.failed",
		metric.WithDescription("Cumulative number of records lost to failed or partial exports"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create failed records counter")
	}

	return &pipelineInstruments{
		meter:         meter,
		configReloads: configReloads,
		queueSize:     queueSize,
		queueCapacity: queueCapacity,
		accepted:      accepted,
		dropped:       dropped,
		exported:      exported,
		failed:        failed,
	}, nil
}

func (pi *pipelineInstruments) registerCallback(src SnapshotSource, state *MetricsState) (metric.Registration, error) {
	reg, err := pi.meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			if state != nil {
				observer.ObserveInt64(pi.configReloads, state.ConfigReloads())
			}

			snap := src.Snapshot()
			transport := metric.WithAttributes(attribute.String("otlplog.transport", snap.Transport))

			observer.ObserveInt64(pi.queueSize, int64(snap.QueueSize), transport)
			observer.ObserveInt64(pi.queueCapacity, int64(snap.QueueCapacity), transport)
			observer.ObserveInt64(pi.accepted, snap.Accepted, transport)
			observer.ObserveInt64(pi.exported, snap.Exported, transport)
			observer.ObserveInt64(pi.failed, snap.Failed, transport)

			pi.observeDropped(observer, snap.Dropped, "overflow")
			pi.observeDropped(observer, snap.AfterShutdown+snap.Abandoned, "shutdown")
			pi.observeDropped(observer, snap.Suppressed, "suppressed")

			return nil
		},
		pi.configReloads,
		pi.queueSize,
		pi.queueCapacity,
		pi.accepted,
		pi.dropped,
		pi.exported,
		pi.failed,
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "register pipeline metrics callback",
			ewrap.WithRetry(constants.DefaultRetryAttempts, constants.DefaultRetryDelay))
	}

	return reg, nil
}

func (pi *pipelineInstruments) observeDropped(observer metric.Observer, value int64, reason string) {
	observer.ObserveInt64(
		pi.dropped,
		value,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
