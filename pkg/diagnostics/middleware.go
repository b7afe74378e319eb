package diagnostics

import (
	"net/http"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/hyp3rd/otlplog/diagnostics"

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithTelemetry traces diagnostics requests and records their count and latency.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) ServerOption {
	return func(s *Server) {
		s.tracerProvider = tp
		s.meterProvider = mp
	}
}

// middleware instruments the diagnostics routes. The route set is fixed, so the
// request path doubles as the route.
type middleware struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newMiddleware(tp trace.TracerProvider, mp metric.MeterProvider) (*middleware, error) {
	meter := mp.Meter(instrumentationName)

	requests, err := meter.Int64Counter(
		"otlplog.diagnostics.requests",
		metric.WithDescription("Number of diagnostics requests served"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create diagnostics request counter")
	}

	duration, err := meter.Float64Histogram(
		"otlplog.diagnostics.duration",
		metric.WithDescription("Latency of diagnostics requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create diagnostics latency histogram")
	}

	return &middleware{
		tracer:   tp.Tracer(instrumentationName),
		requests: requests,
		duration: duration,
	}, nil
}

func (m *middleware) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path

		ctx, span := m.tracer.Start(
			r.Context(),
			r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rr, r.WithContext(ctx))

		attrs := []attribute.KeyValue{
			semconv.HTTPMethodKey.String(r.Method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPStatusCodeKey.Int(rr.status),
		}

		if rr.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rr.status))
		}

		span.SetAttributes(attrs...)

		m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
		m.duration.Record(ctx, float64(time.Since(start).Microseconds())/1e3, metric.WithAttributes(attrs...))
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

// WriteHeader records the status code and delegates to the underlying ResponseWriter.
func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying ResponseWriter.
func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	if err != nil {
		return n, ewrap.Wrap(err, "write response")
	}

	return n, nil
}
