// Package record turns application log events into normalized log records.
//
// An Event is what a logging call site supplies: a message or message
// template, a level, optional arguments, structured properties, an error and
// the ambient context. A Builder converts it into a LogRecord following the
// configured body and attribute rules. LogRecord values are not modified once
// they leave the builder.
package record

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Property is one named structured value attached to an event.
type Property struct {
	Key   string
	Value any
}

// Event is a single application log invocation.
//
// Message is either a message template or already rendered text. Severity,
// when set, overrides the level mapping for hosts with richer level systems.
type Event struct {
	Time       time.Time
	Level      Level
	Severity   Severity
	LoggerName string
	Message    string
	Args       []any
	Properties []Property
	Err        error
	Context    context.Context
}

// LogRecord is the normalized record handed to the queue and the exporter.
type LogRecord struct {
	Timestamp         time.Time
	ObservedTimestamp time.Time
	Severity          Severity
	SeverityText      string
	Body              string
	HasBody           bool
	TraceID           trace.TraceID
	SpanID            trace.SpanID
	TraceFlags        trace.TraceFlags
	Attributes        []attribute.KeyValue
	LoggerName        string
}

// Attribute returns the first attribute stored under key.
func (r LogRecord) Attribute(key attribute.Key) (attribute.Value, bool) {
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}

	return attribute.Value{}, false
}
