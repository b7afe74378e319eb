package pipeline

import (
	"time"

	"github.com/hyp3rd/otlplog/pkg/exporter"
)

// Snapshot is a point-in-time view of the pipeline counters, served by
// diagnostics and observed by the self-metrics runtime.
type Snapshot struct {
	State          string    `json:"state"`
	Transport      string    `json:"transport"`
	QueueSize      int       `json:"queue_size"`
	QueueCapacity  int       `json:"queue_capacity"`
	OverflowPolicy string    `json:"overflow_policy"`
	Accepted       int64     `json:"accepted"`
	Dropped        int64     `json:"dropped"`
	AfterShutdown  int64     `json:"after_shutdown"`
	Abandoned      int64     `json:"abandoned"`
	Suppressed     int64     `json:"suppressed"`
	WritePanics    int64     `json:"write_panics"`
	Exported       int64     `json:"exported"`
	Failed         int64     `json:"failed"`
	Batches        int64     `json:"batches"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorTime  time.Time `json:"last_error_time,omitzero"`

	Exporter *exporter.StatsSnapshot `json:"exporter,omitempty"`
}

type statsSource interface {
	Stats() *exporter.Stats
}

// Snapshot returns the current counters.
func (p *Pipeline) Snapshot() Snapshot {
	snap := Snapshot{
		State:          p.State().String(),
		Transport:      p.cfg.Exporter.Transport(),
		QueueSize:      p.queue.Len(),
		QueueCapacity:  p.queue.Cap(),
		OverflowPolicy: p.queue.Policy().String(),
		Accepted:       p.accepted.Load(),
		Dropped:        p.queue.Dropped(),
		AfterShutdown:  p.afterShutdown.Load(),
		Abandoned:      p.scheduler.abandoned.Load(),
		Suppressed:     p.suppressed.Load(),
		WritePanics:    p.panics.Load(),
		Exported:       p.exported.Load(),
		Failed:         p.failed.Load(),
		Batches:        p.batches.Load(),
	}

	if last := p.lastError.Load(); last != nil {
		snap.LastError = last.message
		snap.LastErrorTime = last.time
	}

	if src, ok := p.exporter.(statsSource); ok {
		stats := src.Stats().Snapshot()
		snap.Exporter = &stats
	}

	return snap
}
