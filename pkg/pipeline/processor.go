package pipeline

import (
	"context"

	"github.com/hyp3rd/otlplog/pkg/record"
)

// Processor enriches a record on the calling goroutine before it is queued.
type Processor interface {
	OnEmit(ctx context.Context, rec *record.LogRecord)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, rec *record.LogRecord)

// OnEmit calls f.
func (f ProcessorFunc) OnEmit(ctx context.Context, rec *record.LogRecord) { f(ctx, rec) }
