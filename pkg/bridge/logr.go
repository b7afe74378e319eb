package bridge

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/hyp3rd/otlplog/pkg/pipeline"
	"github.com/hyp3rd/otlplog/pkg/record"
)

// LogSink is a logr.LogSink writing to a pipeline.
type LogSink struct {
	sink      pipeline.Writer
	name      string
	verbosity int
	props     []record.Property
	ctx       context.Context
}

var _ logr.LogSink = (*LogSink)(nil)

// NewLogger returns a logr.Logger over a pipeline. Entries logged with V(n) for
// n > verbosity are discarded.
func NewLogger(sink pipeline.Writer, name string, verbosity int) logr.Logger {
	return logr.New(&LogSink{sink: sink, name: name, verbosity: verbosity})
}

// Init implements logr.LogSink.
func (*LogSink) Init(logr.RuntimeInfo) {}

// Enabled implements logr.LogSink.
func (s *LogSink) Enabled(level int) bool {
	return level <= s.verbosity
}

// Info implements logr.LogSink.
func (s *LogSink) Info(level int, msg string, keysAndValues ...any) {
	sev := LogrSeverity(level)
	s.write(levelFor(sev), sev, msg, nil, keysAndValues)
}

// Error implements logr.LogSink.
func (s *LogSink) Error(err error, msg string, keysAndValues ...any) {
	s.write(record.LevelError, record.SeverityError, msg, err, keysAndValues)
}

// WithValues implements logr.LogSink.
func (s *LogSink) WithValues(keysAndValues ...any) logr.LogSink {
	clone := *s

	props, _ := pairs(keysAndValues)
	clone.props = append(append([]record.Property{}, s.props...), props...)

	return &clone
}

// WithName implements logr.LogSink.
func (s *LogSink) WithName(name string) logr.LogSink {
	clone := *s
	if clone.name != "" {
		clone.name += "/" + name
	} else {
		clone.name = name
	}

	return &clone
}

// WithContext returns a sink whose events carry ctx for trace correlation and suppression.
func (s *LogSink) WithContext(ctx context.Context) *LogSink {
	clone := *s
	clone.ctx = ctx

	return &clone
}

// LogrSeverity maps a logr verbosity onto the severity scale: V(0) is Info,
// V(1) to V(4) walk down the Debug band, deeper levels the Trace band.
func LogrSeverity(level int) record.Severity {
	return clampSeverity(int(record.SeverityInfo) - level)
}

func (s *LogSink) write(level record.Level, sev record.Severity, msg string, err error, keysAndValues []any) {
	props, kvErr := pairs(keysAndValues)
	if err == nil {
		err = kvErr
	}

	if len(s.props) > 0 {
		props = append(append(make([]record.Property, 0, len(s.props)+len(props)), s.props...), props...)
	}

	s.sink.Write(record.Event{
		Time:       time.Now(),
		Level:      level,
		Severity:   sev,
		LoggerName: s.name,
		Message:    msg,
		Properties: props,
		Err:        err,
		Context:    s.ctx,
	})
}
