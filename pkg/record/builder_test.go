package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBuilder(opts Options) *Builder {
	return NewBuilder(opts).WithClock(func() time.Time { return fixedNow })
}

func attrKeys(attrs []attribute.KeyValue) []string {
	keys := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		keys = append(keys, string(attr.Key))
	}

	return keys
}

func assertKeys(t *testing.T, attrs []attribute.KeyValue, want ...string) {
	t.Helper()

	got := attrKeys(attrs)
	if len(got) != len(want) {
		t.Fatalf("expected attribute keys %v, got %v", want, got)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected attribute keys %v, got %v", want, got)
		}
	}
}

func TestBuildRendersFormattedMessage(t *testing.T) {
	t.Parallel()

	builder := newTestBuilder(Options{IncludeFormattedMessage: true})

	rec := builder.Build(Event{
		Level:   LevelInfo,
		Message: "message : {field}",
		Args:    []any{"testing"},
	})

	if rec.Body != `message : "testing"` {
		t.Fatalf("unexpected body %q", rec.Body)
	}

	assertKeys(t, rec.Attributes, OriginalFormatKey, "field")

	if got := rec.Attributes[0].Value.AsString(); got != "message : {field}" {
		t.Fatalf("expected original format attribute, got %q", got)
	}

	if got := rec.Attributes[1].Value.AsString(); got != "testing" {
		t.Fatalf("expected field=testing, got %q", got)
	}
}

func TestBuildKeepsRawBodyWithoutFormattedMessage(t *testing.T) {
	t.Parallel()

	builder := newTestBuilder(Options{ExcludeProperties: []string{"message", "someProperty"}})

	rec := builder.Build(Event{
		Level:   LevelInfo,
		Message: "message : {message}, id: {id}",
		Args:    []any{"testing", 123},
	})

	if rec.Body != "message : {message}, id: {id}" {
		t.Fatalf("expected raw template body, got %q", rec.Body)
	}

	assertKeys(t, rec.Attributes, "id")

	if got := rec.Attributes[0].Value.AsInt64(); got != 123 {
		t.Fatalf("expected id=123, got %d", got)
	}
}

func TestBuildAttributeModes(t *testing.T) {
	t.Parallel()

	event := Event{
		Level:   LevelInfo,
		Message: "message : {message}, id: {id}",
		Args:    []any{"testing", 123},
	}

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "all properties",
			opts: Options{},
			want: []string{"message", "id"},
		},
		{
			name: "allow-list",
			opts: Options{OnlyIncludeProperties: []string{"id", "someProperty"}},
			want: []string{"id"},
		},
		{
			name: "allow-list wins over deny-list",
			opts: Options{
				OnlyIncludeProperties: []string{"id", "someProperty"},
				ExcludeProperties:     []string{"id"},
			},
			want: []string{"id"},
		},
		{
			name: "allow-list with every key",
			opts: Options{OnlyIncludeProperties: []string{"id", "message"}},
			want: []string{"message", "id"},
		},
		{
			name: "deny-list",
			opts: Options{ExcludeProperties: []string{"message", "someProperty"}},
			want: []string{"id"},
		},
		{
			name: "event parameters ignored for named holes",
			opts: Options{IncludeEventParameters: true},
			want: []string{"message", "id"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := newTestBuilder(tc.opts).Build(event)
			assertKeys(t, rec.Attributes, tc.want...)
		})
	}
}

func TestBuildAllowListFiltersExplicitProperties(t *testing.T) {
	t.Parallel()

	builder := newTestBuilder(Options{
		OnlyIncludeProperties: []string{"id"},
		ExcludeProperties:     []string{"id"},
	})

	rec := builder.Build(Event{
		Message: "plain",
		Properties: []Property{
			{Key: "message", Value: "x"},
			{Key: "id", Value: 42},
			{Key: "extra", Value: "y"},
		},
	})

	assertKeys(t, rec.Attributes, "id")

	if got := rec.Attributes[0].Value.AsInt64(); got != 42 {
		t.Fatalf("expected id=42, got %d", got)
	}
}

func TestBuildPositionalParameters(t *testing.T) {
	t.Parallel()

	event := Event{
		Level:   LevelWarn,
		Message: "copied {0} of {1}",
		Args:    []any{"a.txt", 3},
	}

	rec := newTestBuilder(Options{IncludeEventParameters: true, IncludeFormattedMessage: true}).Build(event)

	if rec.Body != "copied a.txt of 3" {
		t.Fatalf("positional values must not be quoted, got %q", rec.Body)
	}

	assertKeys(t, rec.Attributes, OriginalFormatKey, "0", "1")

	rec = newTestBuilder(Options{}).Build(event)
	if len(rec.Attributes) != 0 {
		t.Fatalf("expected no attributes without IncludeEventParameters, got %v", attrKeys(rec.Attributes))
	}

	if rec.Body != "copied {0} of {1}" {
		t.Fatalf("expected raw body, got %q", rec.Body)
	}
}

func TestBuildPlainMessageHasNoOriginalFormat(t *testing.T) {
	t.Parallel()

	rec := newTestBuilder(Options{IncludeFormattedMessage: true}).Build(Event{Level: LevelInfo, Message: "hello"})

	if rec.Body != "hello" || !rec.HasBody {
		t.Fatalf("expected body hello, got %q", rec.Body)
	}

	if len(rec.Attributes) != 0 {
		t.Fatalf("expected no attributes, got %v", attrKeys(rec.Attributes))
	}

	if !rec.Timestamp.Equal(fixedNow) || !rec.ObservedTimestamp.Equal(fixedNow) {
		t.Fatalf("expected timestamps from the clock, got %v / %v", rec.Timestamp, rec.ObservedTimestamp)
	}
}

type stackErr struct{ msg string }

func (e stackErr) Error() string { return e.msg }
func (stackErr) Stack() string   { return "main.go:10" }

func TestBuildRecordsException(t *testing.T) {
	t.Parallel()

	err := errors.Join(stackErr{msg: "disk full"})

	rec := newTestBuilder(Options{
		Attributes: []StaticAttribute{{Key: "logger.name", Layout: "${logger}"}},
	}).Build(Event{
		Level:      LevelError,
		LoggerName: "storage",
		Message:    "write failed",
		Err:        err,
		Properties: []Property{{Key: "path", Value: "/tmp/x"}},
	})

	assertKeys(t, rec.Attributes,
		"path",
		string(semconv.ExceptionTypeKey),
		string(semconv.ExceptionMessageKey),
		string(semconv.ExceptionStacktraceKey),
		"logger.name",
	)

	if got, _ := rec.Attribute(semconv.ExceptionMessageKey); got.AsString() != "disk full" {
		t.Fatalf("unexpected exception message %q", got.AsString())
	}

	if got, _ := rec.Attribute("logger.name"); got.AsString() != "storage" {
		t.Fatalf("expected static attribute from layout, got %q", got.AsString())
	}
}

func TestBuildSeverityTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level Level
		want  Severity
	}{
		{LevelFatal, SeverityFatal},
		{LevelError, SeverityError},
		{LevelWarn, SeverityWarn},
		{LevelInfo, SeverityInfo},
		{LevelDebug, SeverityDebug},
		{LevelTrace, SeverityTrace},
		{Level(42), SeverityInfo},
		{Level(-3), SeverityInfo},
	}

	builder := newTestBuilder(Options{})

	for _, tc := range tests {
		rec := builder.Build(Event{Level: tc.level, Message: "x"})
		if rec.Severity != tc.want {
			t.Fatalf("level %v: expected %v, got %v", tc.level, tc.want, rec.Severity)
		}
	}

	rec := builder.Build(Event{Level: LevelFatal, Severity: SeverityFatal3, Message: "x"})
	if rec.Severity != SeverityFatal3 {
		t.Fatalf("expected explicit severity to win, got %v", rec.Severity)
	}

	if rec.SeverityText != "Fatal" {
		t.Fatalf("expected level name as severity text, got %q", rec.SeverityText)
	}
}

func TestBuildCopiesSpanContext(t *testing.T) {
	t.Parallel()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	builder := newTestBuilder(Options{})

	rec := builder.Build(Event{Message: "x", Context: ctx})
	if rec.TraceID.String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("unexpected trace id %s", rec.TraceID)
	}

	if rec.SpanID.String() != "00f067aa0ba902b7" {
		t.Fatalf("unexpected span id %s", rec.SpanID)
	}

	if !rec.TraceFlags.IsSampled() {
		t.Fatal("expected sampled flag to be copied")
	}

	rec = builder.Build(Event{Message: "x", Context: context.Background()})
	if rec.TraceID.IsValid() || rec.SpanID.IsValid() {
		t.Fatal("expected no ids without an active span")
	}

	rec = builder.Build(Event{Message: "x"})
	if rec.TraceID.IsValid() {
		t.Fatal("expected no ids with a nil context")
	}
}
