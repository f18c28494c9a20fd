package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/route"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	gauges   goSession.Gauges
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) Gauges() goSession.Gauges                   { return f.gauges }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func emptySnapshot() goSession.MetricsSnapshot {
	return goSession.MetricsSnapshot{
		Counters:   map[goSession.MetricID]uint64{},
		Histograms: map[goSession.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{snapshot: emptySnapshot()})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for disabled metrics, got %d", rec.Code)
	}
}

func TestRenderCountersHistogramAndGauges(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:  7,
				goSession.MetricRefreshQueued: 4,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRefreshLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		gauges: goSession.Gauges{
			Authenticated:   true,
			RefreshInFlight: true,
			RefreshPending:  3,
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gosession_login_success_total 7",
		"gosession_refresh_queued_total 4",
		"gosession_audit_dropped_total 2",
		"# TYPE gosession_authenticated gauge",
		"gosession_authenticated 1",
		"gosession_bootstrapping 0",
		"gosession_refresh_in_flight 1",
		"gosession_refresh_pending 3",
		`gosession_refresh_latency_seconds_bucket{le="0.01"} 1`,
		`gosession_refresh_latency_seconds_bucket{le="+Inf"} 36`,
		"gosession_refresh_latency_seconds_count 36",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{goSession.MetricLoginSuccess: 1},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != `a\\b\nc` {
		t.Fatalf("unexpected escape: %q", got)
	}
}

func TestRenderFromClient(t *testing.T) {
	client, err := goSession.New().WithLogger(logging.Discard()).Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	defer client.Close()

	client.Authorize(route.Target{Path: "/reports"})

	out := NewPrometheusExporter(client).Render()
	// Still bootstrapping, so the guard answers loading and counts nothing.
	if !strings.Contains(out, "gosession_guard_redirect_login_total 0") {
		t.Fatalf("expected zero login redirects, got:\n%s", out)
	}
	if !strings.Contains(out, "gosession_bootstrapping 1") {
		t.Fatalf("expected bootstrapping gauge, got:\n%s", out)
	}
	if !strings.Contains(out, "gosession_authenticated 0") {
		t.Fatalf("expected unauthenticated gauge, got:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:   1000,
				goSession.MetricLoginFailure:   40,
				goSession.MetricRefreshSuccess: 800,
				goSession.MetricRefreshFailure: 10,
				goSession.MetricRefreshQueued:  800,
				goSession.MetricForcedLogout:   20,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRefreshLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		gauges: goSession.Gauges{Authenticated: true},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
