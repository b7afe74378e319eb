package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// OriginalFormatKey holds the unrendered template when the body carries the formatted message.
const OriginalFormatKey = "{OriginalFormat}"

// StaticAttribute is a configured attribute whose value is rendered from a Layout per event.
type StaticAttribute struct {
	Key    string
	Layout Layout
}

// Options controls how events become records.
type Options struct {
	// IncludeFormattedMessage renders the template into the body and keeps the template under OriginalFormatKey.
	IncludeFormattedMessage bool
	// IncludeEventParameters exports positional arguments as "0", "1", ... when the event has no properties.
	IncludeEventParameters bool
	// OnlyIncludeProperties is an allow-list. When set, ExcludeProperties is ignored.
	OnlyIncludeProperties []string
	ExcludeProperties     []string
	Attributes            []StaticAttribute
}

// Builder converts events into log records. It is safe for concurrent use.
type Builder struct {
	opts    Options
	only    map[string]struct{}
	exclude map[string]struct{}
	now     func() time.Time
}

// NewBuilder returns a Builder for opts.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:    opts,
		only:    toSet(opts.OnlyIncludeProperties),
		exclude: toSet(opts.ExcludeProperties),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for observed timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	clone := *b
	clone.now = now

	return &clone
}

// Options returns the builder configuration.
func (b *Builder) Options() Options { return b.opts }

// Build converts ev into a record. Attributes are ordered: OriginalFormat,
// event properties, exception details, then static attributes.
func (b *Builder) Build(ev Event) LogRecord {
	observed := b.now()

	rec := LogRecord{
		Timestamp:         ev.Time,
		ObservedTimestamp: observed,
		Severity:          ev.Severity,
		SeverityText:      ev.Level.String(),
		LoggerName:        ev.LoggerName,
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = observed
	}

	if rec.Severity == SeverityUnspecified || !rec.Severity.Valid() {
		rec.Severity = ev.Level.Severity()
	}

	var tmpl *Template

	props := ev.Properties

	if len(ev.Args) > 0 {
		tmpl = ParseTemplate(ev.Message)
		if bound := tmpl.Bind(ev.Args); len(bound) > 0 {
			props = append(bound, ev.Properties...)
		}
	}

	attrs := make([]attribute.KeyValue, 0, len(props)+len(ev.Args)+len(b.opts.Attributes)+4)

	rec.Body = ev.Message
	if b.opts.IncludeFormattedMessage && (len(ev.Args) > 0 || len(props) > 0) {
		if tmpl != nil {
			rec.Body = tmpl.Render(ev.Args)
		}

		attrs = append(attrs, attribute.String(OriginalFormatKey, ev.Message))
	}

	rec.HasBody = rec.Body != ""

	attrs = b.appendProperties(attrs, ev.Args, props)
	attrs = appendException(attrs, ev.Err)

	for _, static := range b.opts.Attributes {
		attrs = append(attrs, attribute.String(static.Key, static.Layout.Render(ev)))
	}

	rec.Attributes = attrs

	applySpanContext(&rec, ev.Context)

	return rec
}

func (b *Builder) appendProperties(attrs []attribute.KeyValue, args []any, props []Property) []attribute.KeyValue {
	switch {
	case len(b.only) > 0:
		for _, prop := range props {
			if _, ok := b.only[prop.Key]; ok {
				attrs = append(attrs, Attribute(prop.Key, prop.Value))
			}
		}
	case len(b.exclude) > 0:
		for _, prop := range props {
			if _, ok := b.exclude[prop.Key]; !ok {
				attrs = append(attrs, Attribute(prop.Key, prop.Value))
			}
		}
	case b.opts.IncludeEventParameters && len(props) == 0 && len(args) > 0:
		for i, arg := range args {
			attrs = append(attrs, Attribute(ParameterKey(i), arg))
		}
	default:
		for _, prop := range props {
			attrs = append(attrs, Attribute(prop.Key, prop.Value))
		}
	}

	return attrs
}

type stackTracer interface {
	Stack() string
}

func appendException(attrs []attribute.KeyValue, err error) []attribute.KeyValue {
	if err == nil {
		return attrs
	}

	attrs = append(attrs,
		semconv.ExceptionTypeKey.String(fmt.Sprintf("%T", err)),
		semconv.ExceptionMessageKey.String(err.Error()),
	)

	var tracer stackTracer
	if errors.As(err, &tracer) {
		if stack := tracer.Stack(); stack != "" {
			attrs = append(attrs, semconv.ExceptionStacktraceKey.String(stack))
		}
	}

	return attrs
}

func applySpanContext(rec *LogRecord, ctx context.Context) {
	if ctx == nil {
		return
	}

	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return
	}

	rec.TraceID = sc.TraceID()
	rec.TraceFlags = sc.TraceFlags()

	if sc.SpanID().IsValid() {
		rec.SpanID = sc.SpanID()
	}
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	return set
}
