// Package diagnostics provides a diagnostics server exposing the log pipeline status.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/otlplog/internal/constants"
	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/logging"
	"github.com/hyp3rd/otlplog/pkg/pipeline"
)

const (
	// StatusPath serves the JSON snapshot.
	StatusPath = "/otlplog/status"
	// FlushPath forces an export of every queued record.
	FlushPath = "/otlplog/flush"
)

// Snapshot captures the pipeline and self-telemetry state for diagnostics endpoints.
type Snapshot struct {
	ServiceName       string            `json:"service_name"`
	ServiceVersion    string            `json:"service_version"`
	Environment       string            `json:"environment"`
	Endpoint          string            `json:"endpoint"`
	StartTime         time.Time         `json:"start_time"`
	LastReloadTime    time.Time         `json:"last_reload_time"`
	ConfigReloadCount int64             `json:"config_reload_count"`
	Pipeline          pipeline.Snapshot `json:"pipeline"`
	Telemetry         TelemetryStatus   `json:"telemetry"`
	Timestamp         time.Time         `json:"timestamp"`
}

// TelemetryStatus describes the pipeline's own metrics and traces.
type TelemetryStatus struct {
	Enabled        bool           `json:"enabled"`
	SamplingMode   string         `json:"sampling_mode,omitempty"`
	RuntimeMetrics bool           `json:"runtime_metrics"`
	DroppedSpans   int64          `json:"dropped_spans"`
	TraceExporter  ExporterStatus `json:"trace_exporter"`
	MetricExporter ExporterStatus `json:"metric_exporter"`
}

// ExporterStatus describes exporter health for diagnostics.
type ExporterStatus struct {
	Protocol      string    `json:"protocol"`
	Endpoint      string    `json:"endpoint"`
	LastError     string    `json:"last_error"`
	LastErrorTime time.Time `json:"last_error_time"`
}

// SnapshotProvider supplies diagnostic snapshots.
type SnapshotProvider interface {
	Snapshot() Snapshot
}

// Flusher forces queued records out.
type Flusher interface {
	ForceFlush(ctx context.Context) error
}

// Server exposes the pipeline status over HTTP for operational diagnostics.
type Server struct {
	cfg      config.DiagnosticsConfig
	provider SnapshotProvider
	flusher  Flusher
	logger   logging.Adapter

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	middleware     *middleware

	server *http.Server
	mu     sync.Mutex
	start  sync.Once
	stop   sync.Once
}

// NewServer constructs a diagnostics server. A nil flusher disables the flush endpoint.
func NewServer(
	cfg config.DiagnosticsConfig,
	provider SnapshotProvider,
	flusher Flusher,
	logger logging.Adapter,
	opts ...ServerOption,
) *Server {
	if logger == nil {
		logger = logging.NewNoopAdapter()
	}

	s := &Server{
		cfg:      cfg,
		provider: provider,
		flusher:  flusher,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.tracerProvider != nil && s.meterProvider != nil {
		mw, err := newMiddleware(s.tracerProvider, s.meterProvider)
		if err != nil {
			logger.Error(context.Background(), err, "diagnostics telemetry disabled")
		} else {
			s.middleware = mw
		}
	}

	return s
}

// Handler returns the diagnostics routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(StatusPath, s.HandleStatus)
	mux.HandleFunc(FlushPath, s.HandleFlush)

	if s.middleware != nil {
		return s.middleware.handler(mux)
	}

	return mux
}

// Start begins serving the diagnostics endpoint until the supplied context is canceled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.HTTPAddr == "" {
		return ewrap.New("diagnostics http_addr is required")
	}

	var startErr error

	s.start.Do(func() {
		lc := net.ListenConfig{}

		ln, err := lc.Listen(ctx, "tcp", s.cfg.HTTPAddr)
		if err != nil {
			startErr = ewrap.Wrap(err, "listen diagnostics")

			return
		}

		s.mu.Lock()
		s.server = &http.Server{
			Addr:              s.cfg.HTTPAddr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: constants.DefaultTimeout,
		}
		srv := s.server
		s.mu.Unlock()

		go func() {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
			defer cancel()

			err := s.Shutdown(shutdownCtx)
			if err != nil {
				s.logger.Error(shutdownCtx, err, "shutdown diagnostics server")
			}
		}()

		go func() {
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error(ctx, err, "diagnostics server stopped")
			}
		}()

		s.logger.Info(ctx, "diagnostics server listening", attribute.String("addr", ln.Addr().String()))
	})

	return startErr
}

// Shutdown stops the diagnostics server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.stop.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.server == nil {
			return
		}

		ctxShutdown, cancel := context.WithTimeout(ctx, constants.DefaultShutdownTimeout)
		defer cancel()

		shutdownErr = s.server.Shutdown(ctxShutdown)
		s.server = nil
	})

	if shutdownErr != nil {
		return ewrap.Wrap(shutdownErr, "shutdown diagnostics server")
	}

	return nil
}

// HandleStatus serves a JSON snapshot of the pipeline status.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)

		return
	}

	snapshot := s.provider.Snapshot()
	snapshot.Timestamp = time.Now().UTC()

	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(snapshot)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// HandleFlush exports every queued record and reports the outcome.
// Only POST is accepted; the flush is bounded by the default flush timeout.
func (s *Server) HandleFlush(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)

		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	if s.flusher == nil {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.DefaultFlushTimeout)
	defer cancel()

	err := s.flusher.ForceFlush(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, pipeline.ErrStopped):
			status = http.StatusServiceUnavailable
		}

		s.logger.Warn(ctx, "diagnostics flush failed", attribute.String("error", err.Error()))
		http.Error(w, err.Error(), status)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}

	return validAuth(r.Header.Get("Authorization"), s.cfg.AuthToken)
}

func validAuth(header, token string) bool {
	const prefix = "Bearer "

	if header == "" {
		return false
	}

	if !strings.HasPrefix(header, prefix) {
		return false
	}

	return strings.TrimSpace(header[len(prefix):]) == token
}
