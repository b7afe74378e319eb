package exporter

import (
	"sync/atomic"
	"time"
)

// Stats tracks delivery outcomes. All methods are safe for concurrent use.
type Stats struct {
	transport     string
	endpoint      string
	exported      atomic.Int64
	failed        atomic.Int64
	rejected      atomic.Int64
	batches       atomic.Int64
	failedBatches atomic.Int64
	lastError     atomic.Pointer[exportError]
}

type exportError struct {
	message string
	time    time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Transport       string    `json:"transport"`
	Endpoint        string    `json:"endpoint"`
	ExportedRecords int64     `json:"exported_records"`
	FailedRecords   int64     `json:"failed_records"`
	RejectedRecords int64     `json:"rejected_records"`
	Batches         int64     `json:"batches"`
	FailedBatches   int64     `json:"failed_batches"`
	LastError       string    `json:"last_error,omitempty"`
	LastErrorTime   time.Time `json:"last_error_time,omitzero"`
}

func newStats(transport, endpoint string) *Stats {
	return &Stats{transport: transport, endpoint: endpoint}
}

func (s *Stats) recordSuccess(records int, rejected int64) {
	s.batches.Add(1)
	s.exported.Add(int64(records) - rejected)
	s.rejected.Add(rejected)
}

func (s *Stats) recordFailure(records int, err error) {
	s.batches.Add(1)
	s.failedBatches.Add(1)
	s.failed.Add(int64(records))

	if err != nil {
		s.lastError.Store(&exportError{message: err.Error(), time: time.Now().UTC()})
	}
}

// Exported returns how many records the receiver accepted.
func (s *Stats) Exported() int64 { return s.exported.Load() }

// Failed returns how many records were lost to failed exports.
func (s *Stats) Failed() int64 { return s.failed.Load() }

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Transport:       s.transport,
		Endpoint:        s.endpoint,
		ExportedRecords: s.exported.Load(),
		FailedRecords:   s.failed.Load(),
		RejectedRecords: s.rejected.Load(),
		Batches:         s.batches.Load(),
		FailedBatches:   s.failedBatches.Load(),
	}

	if last := s.lastError.Load(); last != nil {
		snap.LastError = last.message
		snap.LastErrorTime = last.time
	}

	return snap
}
