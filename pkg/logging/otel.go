package logging

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/otlplog/pkg/record"
)

// Verbosity levels used by the OpenTelemetry SDK's internal logger.
const (
	otelWarnVerbosity = 1
	otelInfoVerbosity = 4
)

// RedirectOTel routes OpenTelemetry SDK internal errors and diagnostics to adapter.
// verbosity follows the logr convention: 1 keeps warnings, 4 adds info, 8 adds debug.
func RedirectOTel(adapter Adapter, verbosity int) {
	if adapter == nil {
		return
	}

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		adapter.Error(context.Background(), err, "opentelemetry sdk error")
	}))
	otel.SetLogger(NewLogr(adapter, verbosity))
}

// NewLogr exposes adapter as a logr.Logger. Entries logged with V(n) for n > verbosity are discarded.
func NewLogr(adapter Adapter, verbosity int) logr.Logger {
	if adapter == nil {
		adapter = NewNoopAdapter()
	}

	return logr.New(&logrSink{adapter: adapter, verbosity: verbosity})
}

type logrSink struct {
	adapter   Adapter
	verbosity int
	name      string
	values    []attribute.KeyValue
}

func (*logrSink) Init(logr.RuntimeInfo) {}

func (s *logrSink) Enabled(level int) bool {
	return level <= s.verbosity
}

func (s *logrSink) Info(level int, msg string, keysAndValues ...any) {
	ctx := context.Background()
	attrs := s.attrs(keysAndValues)

	switch {
	case level <= otelWarnVerbosity:
		s.adapter.Warn(ctx, msg, attrs...)
	case level <= otelInfoVerbosity:
		s.adapter.Info(ctx, msg, attrs...)
	default:
		s.adapter.Debug(ctx, msg, attrs...)
	}
}

func (s *logrSink) Error(err error, msg string, keysAndValues ...any) {
	s.adapter.Error(context.Background(), err, msg, s.attrs(keysAndValues)...)
}

func (s *logrSink) WithValues(keysAndValues ...any) logr.LogSink {
	clone := *s
	clone.values = append(append([]attribute.KeyValue{}, s.values...), KeyValues(keysAndValues)...)

	return &clone
}

func (s *logrSink) WithName(name string) logr.LogSink {
	clone := *s
	if clone.name != "" {
		clone.name += "/" + name
	} else {
		clone.name = name
	}

	return &clone
}

func (s *logrSink) attrs(keysAndValues []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(s.values)+len(keysAndValues)/2+1)
	if s.name != "" {
		out = append(out, attribute.String("logger", s.name))
	}

	out = append(out, s.values...)

	return append(out, KeyValues(keysAndValues)...)
}

// KeyValues converts logr-style alternating key/value pairs into attributes.
// A dangling key is kept with a placeholder value.
func KeyValues(keysAndValues []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, (len(keysAndValues)+1)/2)

	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}

		if i+1 >= len(keysAndValues) {
			out = append(out, attribute.String(key, "(MISSING)"))

			break
		}

		out = append(out, record.Attribute(key, keysAndValues[i+1]))
	}

	return out
}
