package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions issued by GenerateSession.
	MetricSessionCreated MetricID = iota
	// MetricSessionCreateFailure counts GenerateSession calls that could not issue a token.
	MetricSessionCreateFailure
	// MetricSessionValid counts requests that validated to StatusValid.
	MetricSessionValid
	// MetricSessionNoCookie counts requests without a session cookie.
	MetricSessionNoCookie
	// MetricSessionInvalid counts expired or badly signed tokens.
	MetricSessionInvalid
	// MetricSessionMalformed counts structurally invalid tokens.
	MetricSessionMalformed
	// MetricSessionRevoked counts tokens rejected by the revocation list.
	MetricSessionRevoked
	// MetricSessionDisconnected counts tokens older than the disconnect ceiling.
	MetricSessionDisconnected
	// MetricSessionUserMissing counts tokens whose subject is no longer an active user.
	MetricSessionUserMissing
	// MetricSessionRefreshed counts tokens re-signed on the fly.
	MetricSessionRefreshed
	// MetricSessionRemoved counts cleared cookie pairs.
	MetricSessionRemoved
	// MetricCSRFRejected counts protected requests rejected for a missing or wrong CSRF header.
	MetricCSRFRejected
	// MetricUserLookupFailure counts UserProvider errors.
	MetricUserLookupFailure
	// MetricRevocationFailure counts revocation backend errors.
	MetricRevocationFailure
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts logout-all operations.
	MetricLogoutAll
	// MetricValidateLatency is the ValidateSession latency histogram.
	MetricValidateLatency
	metricIDCount
)

const latencyBucketCount = 8

// counterSlot keeps each counter on its own 64-byte cache line so concurrent
// requests bumping different counters do not contend.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds the engine counters and the ValidateSession latency
// histogram. A nil *Metrics records nothing.
type Metrics struct {
	on      bool
	latency bool
	slots   [metricIDCount]counterSlot
	buckets [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histogram buckets are
// per-bucket counts, not cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates counters according to cfg. Latency histograms require
// both Enabled and EnableLatencyHistograms.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{on: cfg.Enabled, latency: cfg.Enabled && cfg.EnableLatencyHistograms}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool { return m != nil && m.on }

// LatencyEnabled reports whether the validate latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricValidateLatency {
		return
	}
	m.slots[id].n.Add(1)
}

// Observe records d. Only [MetricValidateLatency] carries a histogram; other
// ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if id != MetricValidateLatency || !m.LatencyEnabled() {
		return
	}
	m.buckets[bucketIndex(d)].Add(1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.slots[id].n.Load()
}

// Snapshot copies every counter and, when enabled, the latency buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}

	for id := MetricSessionCreated; id < MetricValidateLatency; id++ {
		snap.Counters[id] = m.slots[id].n.Load()
	}
	if m.latency {
		counts := make([]uint64, latencyBucketCount)
		for i := range m.buckets {
			counts[i] = m.buckets[i].Load()
		}
		snap.Histograms[MetricValidateLatency] = counts
	}
	return snap
}

// latencyBounds are the inclusive upper bounds of the first seven buckets;
// the last bucket takes everything slower.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond, 10 * time.Millisecond, 25 * time.Millisecond,
	50 * time.Millisecond, 100 * time.Millisecond, 250 * time.Millisecond,
	500 * time.Millisecond,
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
