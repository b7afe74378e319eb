package bridge

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/hyp3rd/otlplog/pkg/exporter"
	"github.com/hyp3rd/otlplog/pkg/pipeline"
	"github.com/hyp3rd/otlplog/pkg/record"
)

// Handler is a slog.Handler writing to a pipeline.
type Handler struct {
	sink   pipeline.Writer
	name   string
	level  slog.Leveler
	props  []record.Property
	prefix string
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler returns a handler that stamps name on every record. A nil level enables Info and above.
func NewHandler(sink pipeline.Writer, name string, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}

	return &Handler{sink: sink, name: name, level: level}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && !exporter.InstrumentationSuppressed(ctx)
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if exporter.InstrumentationSuppressed(ctx) {
		return nil
	}

	sev := SlogSeverity(r.Level)
	ev := record.Event{
		Time:       r.Time,
		Level:      levelFor(sev),
		Severity:   sev,
		LoggerName: h.name,
		Message:    r.Message,
		Properties: slices.Clip(h.props),
		Context:    ctx,
	}

	r.Attrs(func(a slog.Attr) bool {
		ev.Properties, ev.Err = appendAttr(ev.Properties, ev.Err, h.prefix, a)

		return true
	})

	h.sink.Write(ev)

	return nil
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.props = slices.Clone(h.props)

	for _, a := range attrs {
		clone.props, _ = appendAttr(clone.props, nil, h.prefix, a)
	}

	return &clone
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := *h
	clone.prefix = h.prefix + name + "."

	return &clone
}

// SlogSeverity maps a slog level onto the severity scale: Debug, Info, Warn and
// Error land on the first number of their band, intermediate levels on the
// gradations in between.
func SlogSeverity(level slog.Level) record.Severity {
	return clampSeverity(int(level) + int(record.SeverityInfo))
}

func appendAttr(props []record.Property, firstErr error, prefix string, a slog.Attr) ([]record.Property, error) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return props, firstErr
	}

	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}

		for _, member := range a.Value.Group() {
			props, firstErr = appendAttr(props, firstErr, groupPrefix, member)
		}

		return props, firstErr
	}

	value := a.Value.Any()
	if err, ok := value.(error); ok && firstErr == nil {
		return props, err
	}

	return append(props, record.Property{Key: strings.TrimPrefix(prefix+a.Key, "."), Value: value}), firstErr
}
