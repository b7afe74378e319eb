package exporter

import "context"

type suppressKey struct{}

// SuppressInstrumentation marks ctx so that log activity produced while
// exporting is not captured as new records.
func SuppressInstrumentation(ctx context.Context) context.Context {
	if InstrumentationSuppressed(ctx) {
		return ctx
	}

	return context.WithValue(ctx, suppressKey{}, true)
}

// InstrumentationSuppressed reports whether ctx was marked by SuppressInstrumentation.
func InstrumentationSuppressed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}

	suppressed, _ := ctx.Value(suppressKey{}).(bool)

	return suppressed
}
