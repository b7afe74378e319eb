package exporter

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/hyp3rd/otlplog/pkg/record"
)

// NewRequest serializes a batch into one export request: a single ResourceLogs
// carrying res, with one ScopeLogs per logger name in first-seen order.
func NewRequest(res *resource.Resource, batch []record.LogRecord) *collogspb.ExportLogsServiceRequest {
	scopes := make([]*logspb.ScopeLogs, 0, 1)
	index := make(map[string]int, 1)

	for i := range batch {
		rec := &batch[i]

		pos, ok := index[rec.LoggerName]
		if !ok {
			pos = len(scopes)
			index[rec.LoggerName] = pos
			scopes = append(scopes, &logspb.ScopeLogs{
				Scope: &commonpb.InstrumentationScope{Name: rec.LoggerName},
			})
		}

		scopes[pos].LogRecords = append(scopes[pos].LogRecords, logRecordProto(rec))
	}

	resourceLogs := &logspb.ResourceLogs{
		Resource:  resourceProto(res),
		ScopeLogs: scopes,
	}
	if res != nil {
		resourceLogs.SchemaUrl = res.SchemaURL()
	}

	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{resourceLogs},
	}
}

func logRecordProto(rec *record.LogRecord) *logspb.LogRecord {
	out := &logspb.LogRecord{
		TimeUnixNano:         unixNano(rec.Timestamp),
		ObservedTimeUnixNano: unixNano(rec.ObservedTimestamp),
		SeverityNumber:       logspb.SeverityNumber(rec.Severity),
		SeverityText:         rec.SeverityText,
		Attributes:           keyValues(rec.Attributes),
	}

	if rec.HasBody {
		out.Body = stringValue(rec.Body)
	}

	if rec.TraceID.IsValid() {
		traceID := rec.TraceID
		out.TraceId = traceID[:]
		out.Flags = uint32(rec.TraceFlags)
	}

	if rec.SpanID.IsValid() {
		spanID := rec.SpanID
		out.SpanId = spanID[:]
	}

	return out
}

func resourceProto(res *resource.Resource) *resourcepb.Resource {
	if res == nil {
		return &resourcepb.Resource{}
	}

	return &resourcepb.Resource{Attributes: keyValues(res.Attributes())}
}

func keyValues(attrs []attribute.KeyValue) []*commonpb.KeyValue {
	if len(attrs) == 0 {
		return nil
	}

	out := make([]*commonpb.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, &commonpb.KeyValue{
			Key:   string(attr.Key),
			Value: anyValue(attr.Value),
		})
	}

	return out
}

//nolint:exhaustive // INVALID falls through to the string form.
func anyValue(v attribute.Value) *commonpb.AnyValue {
	switch v.Type() {
	case attribute.BOOL:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.AsBool()}}
	case attribute.INT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.AsInt64()}}
	case attribute.FLOAT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.AsFloat64()}}
	case attribute.STRING:
		return stringValue(v.AsString())
	case attribute.BOOLSLICE:
		return arrayValue(v.AsBoolSlice(), func(b bool) *commonpb.AnyValue {
			return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: b}}
		})
	case attribute.INT64SLICE:
		return arrayValue(v.AsInt64Slice(), func(i int64) *commonpb.AnyValue {
			return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: i}}
		})
	case attribute.FLOAT64SLICE:
		return arrayValue(v.AsFloat64Slice(), func(f float64) *commonpb.AnyValue {
			return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: f}}
		})
	case attribute.STRINGSLICE:
		return arrayValue(v.AsStringSlice(), stringValue)
	default:
		return stringValue(v.Emit())
	}
}

func arrayValue[T any](values []T, convert func(T) *commonpb.AnyValue) *commonpb.AnyValue {
	items := make([]*commonpb.AnyValue, 0, len(values))
	for _, v := range values {
		items = append(items, convert(v))
	}

	return &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{Values: items}}}
}

func stringValue(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}

func unixNano(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}

	nanos := t.UnixNano()
	if nanos < 0 {
		return 0
	}

	return uint64(nanos)
}
