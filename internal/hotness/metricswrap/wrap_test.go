package metricswrap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/hotness/expdecay"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/metrics"
)

func Test_HotKeysGauge_Updates(t *testing.T) {
	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer(), true)

	w := New(expdecay.New(30*time.Second), nil, 1, 1)

	w.Inc("fe:cql:-:-:f=a")
	w.Inc("fe:cql:-:-:f=b")
	w.Reset("fe:cql:-:-:f=a")

	if got := w.Score("fe:cql:-:-:f=b"); got <= 0 {
		t.Fatalf("score = %g", got)
	}

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if body := rr.Body.String(); !strings.Contains(body, "cache_hot_keys 1") {
		t.Fatalf("expected cache_hot_keys == 1, got:\n%s", body)
	}
}

func TestShouldLog_Sampling(t *testing.T) {
	if shouldLog(0, "k") {
		t.Fatal("sample 0 must never log")
	}
	if !shouldLog(1, "k") {
		t.Fatal("sample 1 must always log")
	}
	// deterministic per key
	if shouldLog(0.5, "k") != shouldLog(0.5, "k") {
		t.Fatal("sampling must be stable for a key")
	}
}
