package pipeline

import (
	"context"

	"github.com/hyp3rd/otlplog/pkg/record"
)

// Writer accepts events. Pipeline implements it.
type Writer interface {
	Write(ev record.Event)
}

// Logger is a named entry point whose events carry its name as the instrumentation scope.
type Logger struct {
	name  string
	sink  Writer
	props []record.Property
}

// NewLogger binds name to sink.
func NewLogger(name string, sink Writer) *Logger {
	return &Logger{name: name, sink: sink}
}

// Name returns the logger name.
func (l *Logger) Name() string { return l.name }

// With returns a logger that appends props to every event.
func (l *Logger) With(props ...record.Property) *Logger {
	clone := *l
	clone.props = append(append([]record.Property{}, l.props...), props...)

	return &clone
}

// Write stamps the logger name and properties on ev and forwards it.
func (l *Logger) Write(ev record.Event) {
	if ev.LoggerName == "" {
		ev.LoggerName = l.name
	}

	if len(l.props) > 0 {
		ev.Properties = append(append(make([]record.Property, 0, len(l.props)+len(ev.Properties)), l.props...),
			ev.Properties...)
	}

	l.sink.Write(ev)
}

// Log writes a message template with its arguments at level.
func (l *Logger) Log(ctx context.Context, level record.Level, msg string, args ...any) {
	l.Write(record.Event{Context: ctx, Level: level, Message: msg, Args: args})
}

// Trace logs at LevelTrace.
func (l *Logger) Trace(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, record.LevelTrace, msg, args...)
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, record.LevelDebug, msg, args...)
}

// Info logs at LevelInfo.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, record.LevelInfo, msg, args...)
}

// Warn logs at LevelWarn.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, record.LevelWarn, msg, args...)
}

// Error logs err at LevelError.
func (l *Logger) Error(ctx context.Context, err error, msg string, args ...any) {
	l.Write(record.Event{Context: ctx, Level: record.LevelError, Message: msg, Args: args, Err: err})
}

// Fatal logs err at LevelFatal. It does not exit the process.
func (l *Logger) Fatal(ctx context.Context, err error, msg string, args ...any) {
	l.Write(record.Event{Context: ctx, Level: record.LevelFatal, Message: msg, Args: args, Err: err})
}
