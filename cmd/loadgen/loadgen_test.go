package main

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/model"
	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

func TestMakeBounds_CountAndOrder(t *testing.T) {
	bs := makeBounds(20, rand.New(rand.NewSource(1)))
	if len(bs) != 20 {
		t.Fatalf("len = %d", len(bs))
	}
	for i, b := range bs {
		if b.Min[0] >= b.Max[0] || b.Min[1] >= b.Max[1] {
			t.Fatalf("box %d not increasing: %v", i, b)
		}
	}
	if got := makeBounds(3, rand.New(rand.NewSource(1))); len(got) != 3 {
		t.Fatalf("small pool len = %d", len(got))
	}
}

func TestRequestBody_EncodesToCQL(t *testing.T) {
	bs := makeBounds(1, rand.New(rand.NewSource(7)))
	body, err := requestBody("demo:places", "the_geom", 0, bs[0])
	if err != nil {
		t.Fatal(err)
	}
	var req model.EncodeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatal(err)
	}
	spec, err := filter.ParseFilterSpec(req.Filter)
	if err != nil {
		t.Fatal(err)
	}
	if len(spec.FilterFields) != 1 || spec.SpatialField == nil {
		t.Fatalf("spec = %+v", spec)
	}
	if _, err := filter.ToCQLFilter(spec); err != nil {
		t.Fatalf("generated spec does not encode: %v", err)
	}
}

func TestAggregate_HitRatio(t *testing.T) {
	var a aggregate
	a.add(sample{Status: 200, Cache: "miss", Latency: time.Millisecond})
	a.add(sample{Status: 200, Cache: "memo", Latency: time.Millisecond})
	a.add(sample{Status: 200, Cache: "redis", Latency: time.Millisecond})
	a.add(sample{Status: 200, Cache: "memo", Latency: time.Millisecond})
	a.add(sample{Status: 500, ErrorMsg: "status=500"})

	if a.total != 5 || a.success != 4 || a.errors != 1 {
		t.Fatalf("agg = %+v", a)
	}
	if got := a.hitRatio(); got != 0.75 {
		t.Fatalf("hit ratio = %g", got)
	}
}

func TestPercentile(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	if got := percentile(vals, 50); got != 3 {
		t.Fatalf("p50 = %g", got)
	}
	if got := percentile(vals, 100); got != 5 {
		t.Fatalf("p100 = %g", got)
	}
	if got := percentile(vals, 25); got != 2 {
		t.Fatalf("p25 = %g", got)
	}
	if !math.IsNaN(percentile(nil, 50)) {
		t.Fatal("empty input must be NaN")
	}
}
