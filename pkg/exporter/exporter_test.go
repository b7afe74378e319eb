package exporter

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"golang.org/x/time/rate"

	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/logging"
	"github.com/hyp3rd/otlplog/pkg/record"
)

type fakeTransport struct {
	calls    int
	rejected int64
	err      error
	panicVal any
	ctx      context.Context
	closed   bool
	last     *collogspb.ExportLogsServiceRequest
}

func (*fakeTransport) name() string { return "fake" }

func (f *fakeTransport) send(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (int64, error) {
	f.calls++
	f.ctx = ctx
	f.last = req

	if f.panicVal != nil {
		panic(f.panicVal)
	}

	return f.rejected, f.err
}

func (f *fakeTransport) shutdown(context.Context) error {
	f.closed = true

	return nil
}

func newFakeExporter(t *testing.T, tr *fakeTransport, opts ...Option) *OTLPExporter {
	t.Helper()

	o := options{logger: logging.NewNoopAdapter(), failureLimit: rate.Inf, failureBurst: 1}
	for _, opt := range opts {
		opt(&o)
	}

	inst, err := newInstruments(o.tracerProvider, o.meterProvider, tr.name())
	if err != nil {
		t.Fatalf("newInstruments returned error: %v", err)
	}

	return &OTLPExporter{
		transport:   tr,
		resource:    resource.NewSchemaless(attribute.String("service.name", "checkout")),
		logger:      o.logger,
		instruments: inst,
		stats:       newStats(tr.name(), "memory"),
		limiter:     rate.NewLimiter(o.failureLimit, o.failureBurst),
	}
}

func sampleBatch() []record.LogRecord {
	builder := record.NewBuilder(record.Options{})

	return []record.LogRecord{
		builder.Build(record.Event{LoggerName: "api", Level: record.LevelInfo, Message: "one"}),
		builder.Build(record.Event{LoggerName: "db", Level: record.LevelError, Message: "two"}),
		builder.Build(record.Event{LoggerName: "api", Level: record.LevelWarn, Message: "three"}),
	}
}

func TestExportSuccessUpdatesStats(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{rejected: 1}
	exp := newFakeExporter(t, tr)

	res := exp.Export(context.Background(), sampleBatch())
	if !res.Success() {
		t.Fatalf("expected success, got %v", res.Err)
	}

	if res.Records != 3 || res.Rejected != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	if !InstrumentationSuppressed(tr.ctx) {
		t.Fatal("expected transport context to suppress instrumentation")
	}

	snap := exp.Stats().Snapshot()
	if snap.ExportedRecords != 2 || snap.RejectedRecords != 1 || snap.Batches != 1 {
		t.Fatalf("unexpected stats %+v", snap)
	}
}

func TestExportFailureIsAbsorbed(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{err: errors.New("connection refused")}
	exp := newFakeExporter(t, tr)

	res := exp.Export(context.Background(), sampleBatch())
	if res.Success() {
		t.Fatal("expected failure result")
	}

	snap := exp.Stats().Snapshot()
	if snap.FailedRecords != 3 || snap.FailedBatches != 1 {
		t.Fatalf("unexpected stats %+v", snap)
	}

	if snap.LastError == "" || snap.LastErrorTime.IsZero() {
		t.Fatal("expected last error to be recorded")
	}
}

func TestExportRecoversPanic(t *testing.T) {
	t.Parallel()

	exp := newFakeExporter(t, &fakeTransport{panicVal: "boom"})

	res := exp.Export(context.Background(), sampleBatch())
	if res.Success() {
		t.Fatal("expected panic to become a failure result")
	}

	if exp.Stats().Failed() != 3 {
		t.Fatalf("expected 3 failed records, got %d", exp.Stats().Failed())
	}
}

func TestExportEmptyBatchSkipsTransport(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	exp := newFakeExporter(t, tr)

	res := exp.Export(context.Background(), nil)
	if !res.Success() || tr.calls != 0 {
		t.Fatalf("expected no transport call, got %d calls", tr.calls)
	}
}

func TestExportAfterShutdown(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	exp := newFakeExporter(t, tr)

	err := exp.Shutdown(context.Background())
	if err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	if !tr.closed {
		t.Fatal("expected transport to be closed")
	}

	err = exp.Shutdown(context.Background())
	if err != nil {
		t.Fatalf("second Shutdown returned error: %v", err)
	}

	res := exp.Export(context.Background(), sampleBatch())
	if !errors.Is(res.Err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown, got %v", res.Err)
	}

	if tr.calls != 0 {
		t.Fatal("transport must not be used after shutdown")
	}
}

func TestExportRecordsSpanAndMetrics(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	exp := newFakeExporter(t, &fakeTransport{err: errors.New("unavailable")},
		WithTracerProvider(tp), WithMeterProvider(mp))

	exp.Export(context.Background(), sampleBatch())

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	if spans[0].Name() != "otlplog.export" || spans[0].Status().Code != codes.Error {
		t.Fatalf("unexpected span %q status %v", spans[0].Name(), spans[0].Status())
	}

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	names := map[string]bool{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}

	for _, want := range []string{"otlplog.export.duration_ms", "otlplog.export.batches", "otlplog.export.records"} {
		if !names[want] {
			t.Fatalf("expected metric %s, got %v", want, names)
		}
	}
}

func TestNewRequestGroupsScopes(t *testing.T) {
	t.Parallel()

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	batch := sampleBatch()
	batch = append(batch, record.NewBuilder(record.Options{}).Build(record.Event{
		LoggerName: "db",
		Message:    "",
		Context:    ctx,
		Properties: []record.Property{{Key: "rows", Value: 3}, {Key: "tags", Value: []string{"a", "b"}}},
	}))

	res := resource.NewSchemaless(attribute.String("service.name", "checkout"))
	req := NewRequest(res, batch)

	if len(req.GetResourceLogs()) != 1 {
		t.Fatalf("expected one resource, got %d", len(req.GetResourceLogs()))
	}

	rl := req.GetResourceLogs()[0]
	if got := rl.GetResource().GetAttributes()[0].GetValue().GetStringValue(); got != "checkout" {
		t.Fatalf("unexpected resource attribute %q", got)
	}

	scopes := rl.GetScopeLogs()
	if len(scopes) != 2 || scopes[0].GetScope().GetName() != "api" || scopes[1].GetScope().GetName() != "db" {
		t.Fatalf("unexpected scopes %v", scopes)
	}

	if len(scopes[0].GetLogRecords()) != 2 || scopes[0].GetLogRecords()[1].GetBody().GetStringValue() != "three" {
		t.Fatal("expected api scope to keep record order")
	}

	if scopes[1].GetLogRecords()[0].GetSeverityNumber() != logspb.SeverityNumber_SEVERITY_NUMBER_ERROR {
		t.Fatalf("unexpected severity %v", scopes[1].GetLogRecords()[0].GetSeverityNumber())
	}

	correlated := scopes[1].GetLogRecords()[1]
	if correlated.GetBody() != nil {
		t.Fatal("empty message must not produce a body")
	}

	if len(correlated.GetTraceId()) != 16 || correlated.GetTraceId()[15] != 0x10 {
		t.Fatalf("unexpected trace id %x", correlated.GetTraceId())
	}

	if len(correlated.GetSpanId()) != 8 || correlated.GetFlags() != 1 {
		t.Fatalf("unexpected span id %x flags %d", correlated.GetSpanId(), correlated.GetFlags())
	}

	attrs := correlated.GetAttributes()
	if attrs[0].GetValue().GetIntValue() != 3 {
		t.Fatalf("expected int attribute, got %v", attrs[0].GetValue())
	}

	if len(attrs[1].GetValue().GetArrayValue().GetValues()) != 2 {
		t.Fatalf("expected array attribute, got %v", attrs[1].GetValue())
	}

	if scopes[0].GetLogRecords()[0].GetTraceId() != nil {
		t.Fatal("uncorrelated record must not carry a trace id")
	}

	if scopes[0].GetLogRecords()[0].GetTimeUnixNano() == 0 {
		t.Fatal("expected timestamp")
	}
}

func TestNewResource(t *testing.T) {
	t.Parallel()

	res, err := NewResource(config.ServiceConfig{
		Name:      "checkout",
		Version:   "1.2.3",
		Resources: []string{"team=payments,service.version=2.0.0"},
	})
	if err != nil {
		t.Fatalf("NewResource returned error: %v", err)
	}

	values := map[string]string{}
	for _, kv := range res.Attributes() {
		values[string(kv.Key)] = kv.Value.Emit()
	}

	if values["service.name"] != "checkout" || values["team"] != "payments" {
		t.Fatalf("unexpected attributes %v", values)
	}

	if values["service.version"] != "2.0.0" {
		t.Fatalf("expected extra resource to override version, got %q", values["service.version"])
	}

	if values["service.instance.id"] == "" {
		t.Fatal("expected service.instance.id")
	}

	if _, ok := values["telemetry.sdk.name"]; ok {
		t.Fatal("default resources must be opt-in")
	}

	res, err = NewResource(config.ServiceConfig{Name: "checkout", UseDefaultResources: true})
	if err != nil {
		t.Fatalf("NewResource with defaults returned error: %v", err)
	}

	found := false

	for _, kv := range res.Attributes() {
		if kv.Key == "telemetry.sdk.name" {
			found = true
		}

		if kv.Key == "service.name" && kv.Value.AsString() != "checkout" {
			t.Fatalf("configured service.name must win, got %q", kv.Value.AsString())
		}
	}

	if !found {
		t.Fatal("expected telemetry.sdk.name from default resources")
	}

	_, err = NewResource(config.ServiceConfig{Resources: []string{"broken"}})
	if !errors.Is(err, config.ErrParseResources) {
		t.Fatalf("expected ErrParseResources, got %v", err)
	}
}

func TestSuppressInstrumentation(t *testing.T) {
	t.Parallel()

	if InstrumentationSuppressed(context.Background()) {
		t.Fatal("background context must not be suppressed")
	}

	//nolint:staticcheck // nil context is accepted.
	if InstrumentationSuppressed(nil) {
		t.Fatal("nil context must not be suppressed")
	}

	ctx, cancel := context.WithTimeout(SuppressInstrumentation(context.Background()), time.Second)
	defer cancel()

	if !InstrumentationSuppressed(ctx) {
		t.Fatal("expected derived context to stay suppressed")
	}
}
