package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(exp); n != 0 {
		t.Fatalf("expected no series for disabled metrics, got %d", n)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricSessionCreated:   7,
				goSession.MetricSessionRefreshed: 3,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	expected := `
# HELP gosession_session_created_total Sessions issued after a successful login.
# TYPE gosession_session_created_total counter
gosession_session_created_total 7
# HELP gosession_session_refreshed_total Session tokens re-signed with a new expiry.
# TYPE gosession_session_refreshed_total counter
gosession_session_refreshed_total 3
# HELP gosession_audit_dropped_total Audit events dropped due to dispatcher backpressure.
# TYPE gosession_audit_dropped_total counter
gosession_audit_dropped_total 2
`
	err := testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"gosession_session_created_total",
		"gosession_session_refreshed_total",
		"gosession_audit_dropped_total",
	)
	if err != nil {
		t.Fatalf("unexpected counters: %v", err)
	}

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(exp)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range families {
		if mf.GetName() != "gosession_validate_latency_seconds" {
			continue
		}
		found = true
		h := mf.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 36 {
			t.Fatalf("expected 36 samples, got %d", h.GetSampleCount())
		}
		if first := h.GetBucket()[0]; first.GetUpperBound() != 0.005 || first.GetCumulativeCount() != 1 {
			t.Fatalf("unexpected first bucket %v", first)
		}
	}
	if !found {
		t.Fatal("expected latency histogram")
	}
}

func TestHandlerServesExposition(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{goSession.MetricCSRFRejected: 1},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gosession_csrf_rejected_total 1") {
		t.Fatalf("expected csrf counter in output, got:\n%s", rec.Body.String())
	}
}

func BenchmarkCollect(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricSessionCreated:   1000,
				goSession.MetricSessionValid:     90000,
				goSession.MetricSessionRefreshed: 800,
				goSession.MetricSessionInvalid:   10,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = testutil.CollectAndCount(exp)
	}
}
