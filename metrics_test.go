package goSession

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSessionCreated)

	if got := m.Value(MetricSessionCreated); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSessionCreated)
	m.Inc(MetricSessionCreated)
	m.Inc(MetricSessionCreated)

	if got := m.Value(MetricSessionCreated); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricSessionRefreshed)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricSessionRefreshed); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestBucketIndex(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + time.Microsecond, 1},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{700 * time.Millisecond, 7},
		{time.Minute, 7},
	}
	for _, tc := range tests {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Fatalf("bucketIndex(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricsHistogramRequiresLatencyFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricValidateLatency, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricValidateLatency]; ok {
		t.Fatal("histogram must be absent without EnableLatencyHistograms")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricSessionCreated)
	m.Inc(MetricSessionInvalid)
	m.Inc(MetricSessionInvalid)
	m.Observe(MetricValidateLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("expected MetricSessionCreated=1 got %d", snap.Counters[MetricSessionCreated])
	}
	if snap.Counters[MetricSessionInvalid] != 2 {
		t.Fatalf("expected MetricSessionInvalid=2 got %d", snap.Counters[MetricSessionInvalid])
	}
	if len(snap.Histograms[MetricValidateLatency]) != 8 {
		t.Fatalf("expected histogram length 8")
	}
	if snap.Histograms[MetricValidateLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricValidateLatency][0])
	}
}

func TestMetricsObserveIgnoresCounterIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Observe(MetricSessionCreated, time.Millisecond)
	m.Inc(metricIDCount)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricSessionCreated]; ok {
		t.Fatal("counter ids must not carry histograms")
	}
	if got := m.Value(metricIDCount); got != 0 {
		t.Fatalf("out of range id must read 0, got %d", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricSessionValid)
	m.Observe(MetricValidateLatency, time.Millisecond)
	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}
