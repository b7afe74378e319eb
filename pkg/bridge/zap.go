package bridge

import (
	"context"
	"slices"

	"go.uber.org/zap/zapcore"

	"github.com/hyp3rd/otlplog/internal/constants"
	"github.com/hyp3rd/otlplog/pkg/pipeline"
	"github.com/hyp3rd/otlplog/pkg/record"
)

// Flusher is implemented by writers that can force queued records out.
type Flusher interface {
	ForceFlush(ctx context.Context) error
}

// Core is a zapcore.Core writing to a pipeline.
type Core struct {
	zapcore.LevelEnabler

	sink  pipeline.Writer
	name  string
	props []record.Property
	err   error
}

var _ zapcore.Core = (*Core)(nil)

// NewCore returns a core for entries enabled by enab. Entries without a logger
// name are stamped with name.
func NewCore(sink pipeline.Writer, name string, enab zapcore.LevelEnabler) *Core {
	if enab == nil {
		enab = zapcore.InfoLevel
	}

	return &Core{LevelEnabler: enab, sink: sink, name: name}
}

// With implements zapcore.Core.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.props, clone.err = appendFields(slices.Clone(c.props), c.err, fields)

	return &clone
}

// Check implements zapcore.Core.
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// Write implements zapcore.Core.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	sev := ZapSeverity(ent.Level)

	name := ent.LoggerName
	if name == "" {
		name = c.name
	}

	props, err := appendFields(slices.Clone(c.props), c.err, fields)

	if ent.Caller.Defined {
		props = append(props,
			record.Property{Key: "code.filepath", Value: ent.Caller.File},
			record.Property{Key: "code.lineno", Value: ent.Caller.Line},
		)
		if ent.Caller.Function != "" {
			props = append(props, record.Property{Key: "code.function", Value: ent.Caller.Function})
		}
	}

	c.sink.Write(record.Event{
		Time:       ent.Time,
		Level:      levelFor(sev),
		Severity:   sev,
		LoggerName: name,
		Message:    ent.Message,
		Properties: props,
		Err:        err,
	})

	return nil
}

// Sync flushes the pipeline when the writer supports it.
func (c *Core) Sync() error {
	flusher, ok := c.sink.(Flusher)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultFlushTimeout)
	defer cancel()

	return flusher.ForceFlush(ctx)
}

// ZapSeverity maps a zap level onto the severity scale. DPanic, Panic and Fatal
// take the Fatal gradations in that order, so a Fatal exit ranks highest.
func ZapSeverity(level zapcore.Level) record.Severity {
	switch level {
	case zapcore.DebugLevel:
		return record.SeverityDebug
	case zapcore.InfoLevel:
		return record.SeverityInfo
	case zapcore.WarnLevel:
		return record.SeverityWarn
	case zapcore.ErrorLevel:
		return record.SeverityError
	case zapcore.DPanicLevel:
		return record.SeverityFatal2
	case zapcore.PanicLevel:
		return record.SeverityFatal3
	case zapcore.FatalLevel:
		return record.SeverityFatal4
	default:
		if level < zapcore.DebugLevel {
			return record.SeverityTrace
		}

		return record.SeverityInfo
	}
}

// appendFields encodes each field on its own so that property order follows field order.
func appendFields(props []record.Property, firstErr error, fields []zapcore.Field) ([]record.Property, error) {
	for _, f := range fields {
		if f.Type == zapcore.ErrorType {
			if err, ok := f.Interface.(error); ok && firstErr == nil {
				firstErr = err

				continue
			}
		}

		enc := zapcore.NewMapObjectEncoder()
		f.AddTo(enc)

		for key, value := range enc.Fields {
			props = append(props, record.Property{Key: key, Value: value})
		}
	}

	return props, firstErr
}
