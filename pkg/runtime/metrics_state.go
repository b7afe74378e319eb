package runtime

import (
	"sync/atomic"
	"time"
)

// MetricsState tracks counters that must persist across configuration reloads.
type MetricsState struct {
	configReloads atomic.Int64
	lastReload    atomic.Pointer[time.Time]
}

// NewMetricsState constructs an empty MetricsState.
func NewMetricsState() *MetricsState {
	return &MetricsState{}
}

// IncrementConfigReloads records an applied reload.
func (m *MetricsState) IncrementConfigReloads() {
	if m == nil {
		return
	}

	now := time.Now().UTC()
	m.lastReload.Store(&now)
	m.configReloads.Add(1)
}

// ConfigReloads returns the number of reloads recorded.
func (m *MetricsState) ConfigReloads() int64 {
	if m == nil {
		return 0
	}

	return m.configReloads.Load()
}

// LastReload returns when the last reload was applied, or the zero time.
func (m *MetricsState) LastReload() time.Time {
	if m == nil {
		return time.Time{}
	}

	if last := m.lastReload.Load(); last != nil {
		return *last
	}

	return time.Time{}
}
