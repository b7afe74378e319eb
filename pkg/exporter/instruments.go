package exporter

import (
	"context"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/hyp3rd/otlplog/exporter"

// instruments records a span and latency/count metrics around every export call.
type instruments struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
	batches  metric.Int64Counter
	records  metric.Int64Counter
	attrs    []attribute.KeyValue
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider, transport string) (*instruments, error) {
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}

	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	meter := mp.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"otlplog.export.duration_ms",
		metric.WithDescription("Latency of log batch exports"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create export duration histogram")
	}

	batches, err := meter.Int64Counter(
		"otlplog.export.batches",
		metric.WithDescription("Number of log batches handed to the transport"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create export batch counter")
	}

	records, err := meter.Int64Counter(
		"otlplog.export.records",
		metric.WithDescription("Number of log records handed to the transport"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create export record counter")
	}

	return &instruments{
		tracer:   tp.Tracer(instrumentationName),
		duration: duration,
		batches:  batches,
		records:  records,
		attrs:    []attribute.KeyValue{attribute.String("otlplog.transport", transport)},
	}, nil
}

func (i *instruments) observe(
	ctx context.Context,
	size int,
	fn func(context.Context) (int64, error),
) (int64, error) {
	ctx, span := i.tracer.Start(ctx, "otlplog.export",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(i.attrs...),
		trace.WithAttributes(attribute.Int("otlplog.batch.size", size)),
	)
	start := time.Now()

	rejected, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		if rejected > 0 {
			span.SetAttributes(attribute.Int64("otlplog.batch.rejected", rejected))
		}

		span.SetStatus(codes.Ok, "")
	}

	span.End()

	attrs := append(append([]attribute.KeyValue{}, i.attrs...), attribute.String("otlplog.result", resultTag(err)))
	set := metric.WithAttributes(attrs...)

	i.duration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), set)
	i.batches.Add(ctx, 1, set)
	i.records.Add(ctx, int64(size), set)

	return rejected, err
}

func resultTag(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
