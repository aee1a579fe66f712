package gateway

import (
	"sync"
	"sync/atomic"
	"time"
)

// pairKey identifies one provider×capability series.
type pairKey struct {
	provider   string
	capability string
}

// pairCounters are the running sums for one series. Increments are
// append-only; derived rates are computed on snapshot.
type pairCounters struct {
	totalCalls   int64
	successCalls int64
	failCalls    int64
	totalLatency time.Duration
}

// MetricsRecorder keeps running dispatch aggregates per provider×capability
// plus process-wide totals. It is read-only from the outside via Snapshot.
type MetricsRecorder struct {
	totalCalls   atomic.Int64
	successCalls atomic.Int64
	failCalls    atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
	cacheHits    atomic.Int64
	fallbacks    atomic.Int64

	mu        sync.RWMutex
	pairs     map[pairKey]*pairCounters
	startTime time.Time
}

// NewMetricsRecorder creates an empty recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{
		pairs:     make(map[pairKey]*pairCounters),
		startTime: time.Now(),
	}
}

// Record registers one provider call outcome.
func (m *MetricsRecorder) Record(providerCode, capability string, latency time.Duration, success bool) {
	m.totalCalls.Add(1)
	m.totalLatency.Add(int64(latency))
	if success {
		m.successCalls.Add(1)
	} else {
		m.failCalls.Add(1)
	}

	key := pairKey{provider: providerCode, capability: capability}
	m.mu.Lock()
	pc, ok := m.pairs[key]
	if !ok {
		pc = &pairCounters{}
		m.pairs[key] = pc
	}
	pc.totalCalls++
	pc.totalLatency += latency
	if success {
		pc.successCalls++
	} else {
		pc.failCalls++
	}
	m.mu.Unlock()
}

// RecordCacheHit counts a dispatch served from the response cache. Cache hits
// are tracked separately and do not enter the call aggregates, since no
// provider call happened.
func (m *MetricsRecorder) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordFallback counts a dispatch that moved to a fallback candidate.
func (m *MetricsRecorder) RecordFallback() {
	m.fallbacks.Add(1)
}

// PairStats is the snapshot view of one provider×capability series.
type PairStats struct {
	Provider     string        `json:"provider"`
	Capability   string        `json:"capability"`
	TotalCalls   int64         `json:"total_calls"`
	SuccessCalls int64         `json:"success_calls"`
	FailCalls    int64         `json:"fail_calls"`
	AvgLatency   time.Duration `json:"avg_latency_ns"`
	SuccessRate  float64       `json:"success_rate"`
}

// MetricsSnapshot is a point-in-time view of all aggregates, safe to
// serialize and expose over the management API.
type MetricsSnapshot struct {
	TotalCalls    int64       `json:"total_calls"`
	SuccessCalls  int64       `json:"success_calls"`
	FailCalls     int64       `json:"fail_calls"`
	SuccessRate   float64     `json:"success_rate"`
	AvgLatencyMS  int64       `json:"avg_latency_ms"`
	CacheHits     int64       `json:"cache_hits"`
	Fallbacks     int64       `json:"fallbacks"`
	Pairs         []PairStats `json:"pairs"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Snapshot returns a copy of the current aggregates.
func (m *MetricsRecorder) Snapshot() MetricsSnapshot {
	total := m.totalCalls.Load()
	success := m.successCalls.Load()

	snap := MetricsSnapshot{
		TotalCalls:   total,
		SuccessCalls: success,
		FailCalls:    m.failCalls.Load(),
		CacheHits:    m.cacheHits.Load(),
		Fallbacks:    m.fallbacks.Load(),
		Timestamp:    time.Now(),
	}
	if total > 0 {
		snap.SuccessRate = float64(success) / float64(total)
		snap.AvgLatencyMS = time.Duration(m.totalLatency.Load() / total).Milliseconds()
	}

	m.mu.RLock()
	snap.UptimeSeconds = int64(time.Since(m.startTime).Seconds())
	snap.Pairs = make([]PairStats, 0, len(m.pairs))
	for key, pc := range m.pairs {
		ps := PairStats{
			Provider:     key.provider,
			Capability:   key.capability,
			TotalCalls:   pc.totalCalls,
			SuccessCalls: pc.successCalls,
			FailCalls:    pc.failCalls,
		}
		if pc.totalCalls > 0 {
			ps.AvgLatency = pc.totalLatency / time.Duration(pc.totalCalls)
			ps.SuccessRate = float64(pc.successCalls) / float64(pc.totalCalls)
		}
		snap.Pairs = append(snap.Pairs, ps)
	}
	m.mu.RUnlock()

	return snap
}

// Reset clears all aggregates. Primarily useful for tests.
func (m *MetricsRecorder) Reset() {
	m.totalCalls.Store(0)
	m.successCalls.Store(0)
	m.failCalls.Store(0)
	m.totalLatency.Store(0)
	m.cacheHits.Store(0)
	m.fallbacks.Store(0)

	m.mu.Lock()
	m.pairs = make(map[pairKey]*pairCounters)
	m.startTime = time.Now()
	m.mu.Unlock()
}
