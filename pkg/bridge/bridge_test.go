package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hyp3rd/otlplog/pkg/exporter"
	"github.com/hyp3rd/otlplog/pkg/record"
)

type recorder struct {
	mu      sync.Mutex
	events  []record.Event
	flushes int
}

func (r *recorder) Write(ev record.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ForceFlush(context.Context) error {
	r.flushes++

	return nil
}

func (r *recorder) last(t *testing.T) record.Event {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		t.Fatal("no event was written")
	}

	return r.events[len(r.events)-1]
}

func props(ev record.Event) map[string]any {
	out := make(map[string]any, len(ev.Properties))
	for _, p := range ev.Properties {
		out[p.Key] = p.Value
	}

	return out
}

func TestSlogSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level slog.Level
		want  record.Severity
	}{
		{slog.LevelDebug - 4, record.SeverityTrace},
		{slog.LevelDebug, record.SeverityDebug},
		{slog.LevelInfo, record.SeverityInfo},
		{slog.LevelInfo + 2, record.SeverityInfo3},
		{slog.LevelWarn, record.SeverityWarn},
		{slog.LevelError, record.SeverityError},
		{slog.LevelError + 4, record.SeverityFatal},
		{slog.Level(40), record.SeverityFatal4},
		{slog.Level(-40), record.SeverityTrace},
	}

	for _, tc := range tests {
		if got := SlogSeverity(tc.level); got != tc.want {
			t.Fatalf("SlogSeverity(%v) = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestHandlerWritesEvents(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	logger := slog.New(NewHandler(rec, "checkout", slog.LevelDebug)).
		With("tenant", "acme").
		WithGroup("req")

	failure := errors.New("card declined")
	logger.Warn("payment failed", "id", 42, "err", failure, slog.Group("user", "name", "ada"))

	ev := rec.last(t)
	if ev.LoggerName != "checkout" || ev.Message != "payment failed" {
		t.Fatalf("unexpected event %+v", ev)
	}

	if ev.Severity != record.SeverityWarn || ev.Level != record.LevelWarn {
		t.Fatalf("unexpected severity %v / level %v", ev.Severity, ev.Level)
	}

	if !errors.Is(ev.Err, failure) {
		t.Fatalf("expected the error to be carried, got %v", ev.Err)
	}

	got := props(ev)
	if got["tenant"] != "acme" || got["req.id"] != int64(42) || got["req.user.name"] != "ada" {
		t.Fatalf("unexpected properties %v", ev.Properties)
	}
}

func TestHandlerHonorsSuppressionAndLevel(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	handler := NewHandler(rec, "", nil)
	logger := slog.New(handler)

	logger.Debug("below threshold")
	logger.InfoContext(exporter.SuppressInstrumentation(context.Background()), "from the exporter")

	if len(rec.events) != 0 {
		t.Fatalf("expected no events, got %d", len(rec.events))
	}
}

func TestZapSeverity(t *testing.T) {
	t.Parallel()

	tests := map[zapcore.Level]record.Severity{
		zapcore.DebugLevel:  record.SeverityDebug,
		zapcore.InfoLevel:   record.SeverityInfo,
		zapcore.WarnLevel:   record.SeverityWarn,
		zapcore.ErrorLevel:  record.SeverityError,
		zapcore.DPanicLevel: record.SeverityFatal2,
		zapcore.PanicLevel:  record.SeverityFatal3,
		zapcore.FatalLevel:  record.SeverityFatal4,
	}

	for level, want := range tests {
		if got := ZapSeverity(level); got != want {
			t.Fatalf("ZapSeverity(%v) = %v, want %v", level, got, want)
		}
	}

	for level := zapcore.DebugLevel; level < zapcore.FatalLevel; level++ {
		if ZapSeverity(level) >= ZapSeverity(level+1) {
			t.Fatalf("expected %v to rank below %v", level, level+1)
		}
	}
}

func TestCoreWritesEvents(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	logger := zap.New(NewCore(rec, "default", zapcore.DebugLevel)).
		Named("billing").
		With(zap.String("tenant", "acme"))

	failure := errors.New("ledger locked")
	logger.Error("charge failed", zap.Int("amount", 10), zap.Error(failure))

	ev := rec.last(t)
	if ev.LoggerName != "billing" || ev.Severity != record.SeverityError {
		t.Fatalf("unexpected event %+v", ev)
	}

	if !errors.Is(ev.Err, failure) {
		t.Fatalf("expected the error to be carried, got %v", ev.Err)
	}

	got := props(ev)
	if got["tenant"] != "acme" || got["amount"] != int64(10) {
		t.Fatalf("unexpected properties %v", ev.Properties)
	}

	if _, ok := got["error"]; ok {
		t.Fatal("error fields must travel as the event error, not as a property")
	}

	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}

	if rec.flushes != 1 {
		t.Fatalf("expected Sync to flush once, got %d", rec.flushes)
	}
}

func TestCoreDefaultsLoggerName(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	zap.New(NewCore(rec, "default", nil)).Info("hello")

	if ev := rec.last(t); ev.LoggerName != "default" {
		t.Fatalf("expected default logger name, got %q", ev.LoggerName)
	}
}

func TestLogrSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level int
		want  record.Severity
	}{
		{0, record.SeverityInfo},
		{1, record.SeverityDebug4},
		{4, record.SeverityDebug},
		{5, record.SeverityTrace4},
		{20, record.SeverityTrace},
	}

	for _, tc := range tests {
		if got := LogrSeverity(tc.level); got != tc.want {
			t.Fatalf("LogrSeverity(%d) = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestLogSinkWritesEvents(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	logger := NewLogger(rec, "controller", 1).WithName("reconciler").WithValues("namespace", "default")

	logger.V(1).Info("reconciling", "name", "web")
	logger.V(2).Info("too verbose")

	ev := rec.last(t)
	if ev.LoggerName != "controller/reconciler" || ev.Severity != record.SeverityDebug4 || ev.Level != record.LevelDebug {
		t.Fatalf("unexpected event %+v", ev)
	}

	got := props(ev)
	if got["namespace"] != "default" || got["name"] != "web" {
		t.Fatalf("unexpected properties %v", ev.Properties)
	}

	failure := errors.New("conflict")
	logger.Error(failure, "update failed", "dangling")

	ev = rec.last(t)
	if ev.Level != record.LevelError || !errors.Is(ev.Err, failure) {
		t.Fatalf("unexpected error event %+v", ev)
	}

	if props(ev)["dangling"] != "(MISSING)" {
		t.Fatalf("expected a placeholder for the dangling key, got %v", ev.Properties)
	}

	if len(rec.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.events))
	}
}
