package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	auth "github.com/Tadeu17/authentication-template"
)

type fakeSource struct {
	snapshot auth.MetricsSnapshot
	limiter  auth.LimiterStats
}

func (f fakeSource) MetricsSnapshot() auth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) LimiterStats() auth.LimiterStats       { return f.limiter }

func TestRenderOmitsCountersWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: auth.MetricsSnapshot{
			Counters:   map[auth.MetricID]uint64{},
			Histograms: map[auth.MetricID][]uint64{},
		},
		limiter: auth.LimiterStats{Entries: 4},
	})

	out := exp.Render()
	if strings.Contains(out, "auth_login_success_total") {
		t.Fatalf("expected no engine counters, got:\n%s", out)
	}
	if !strings.Contains(out, "auth_rate_limit_entries 4") {
		t.Fatalf("expected limiter gauge, got:\n%s", out)
	}
}

func TestRenderIncludesCounterHistogramAndLimiter(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: auth.MetricsSnapshot{
			Counters: map[auth.MetricID]uint64{
				auth.MetricLoginSuccess: 7,
				auth.MetricEmailDropped: 2,
			},
			Histograms: map[auth.MetricID][]uint64{
				auth.MetricPasswordHashLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		limiter: auth.LimiterStats{Entries: 3, Sweeps: 2, EntriesSwept: 9},
	})

	out := exp.Render()
	for _, want := range []string{
		"auth_login_success_total 7",
		"auth_email_dropped_total 2",
		"auth_register_success_total 0",
		"# TYPE auth_password_hash_seconds histogram",
		"auth_password_hash_seconds_bucket{le=\"0.01\"} 1",
		"auth_password_hash_seconds_bucket{le=\"+Inf\"} 36",
		"auth_password_hash_seconds_count 36",
		"# TYPE auth_rate_limit_entries gauge",
		"auth_rate_limit_sweeps_total 2",
		"auth_rate_limit_entries_swept_total 9",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: auth.MetricsSnapshot{
			Counters:   map[auth.MetricID]uint64{auth.MetricLoginSuccess: 1},
			Histograms: map[auth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != `a\\b\nc` {
		t.Fatalf("unexpected escape %q", got)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: auth.MetricsSnapshot{
			Counters: map[auth.MetricID]uint64{
				auth.MetricLoginSuccess:    1000,
				auth.MetricLoginFailure:    40,
				auth.MetricRegisterSuccess: 800,
			},
			Histograms: map[auth.MetricID][]uint64{
				auth.MetricPasswordHashLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
