package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/stockcount/internal/session"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	m := New()
	m.ScanResult("identified")
	m.ScanResult("identified")
	m.SessionFinalized("recount")
	m.RowsSkipped("stock", 3)
	m.RowsSkipped("products", 0)
	m.PersistenceFailure(session.SourceRemote, "put")
	m.ObserveRequest("POST", "/api/session/scan", 200, 15*time.Millisecond)

	out := scrape(t, m)

	want := []string{
		`stockcount_scans_total{result="identified"} 2`,
		`stockcount_sessions_finalized_total{mode="recount"} 1`,
		`stockcount_ingest_rows_skipped_total{file="stock"} 3`,
		`stockcount_persistence_failures_total{op="put",store="remote"} 1`,
		`stockcount_http_requests_total{method="POST",route="/api/session/scan",status="200"} 1`,
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("exposition missing %q", w)
		}
	}
	if strings.Contains(out, `file="products"`) {
		t.Error("zero skipped rows should not create a series")
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ScanResult("not_found")

	if strings.Contains(scrape(t, b), `result="not_found"`) {
		t.Error("metrics leaked between registries")
	}
}
