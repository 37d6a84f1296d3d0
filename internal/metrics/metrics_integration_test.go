package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer(), true)

	start := time.Now()
	observability.ObserveEncode("ogc", nil, time.Since(start).Seconds())
	observability.ObserveEncode("cql", nil, 0.0002)
	observability.IncPredicateDropped("cql", "missing start date")

	observability.IncCacheHit("redis")
	observability.IncCacheMiss()
	observability.ObserveCacheOp("get", nil, 0.002)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()

	for _, m := range []string{
		"filter_encode_duration_seconds_bucket",
		"redis_operation_duration_seconds_count",
		"go_goroutines",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("missing %s in payload:\n%s", m, body)
		}
	}
	assertHasMetricLine(t, body, "filter_encode_total", `format="ogc"`, `outcome="ok"`)
	assertHasMetricLine(t, body, "filter_predicates_dropped_total", `reason="missing start date"`)
	assertHasMetricLine(t, body, "cache_results_total", `outcome="hit"`, `tier="redis"`)
	assertHasMetricLine(t, body, "cache_results_total", `outcome="miss"`)
}
