package simple

import (
	"testing"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/hotness/expdecay"
)

type fakeHot struct {
	scores map[string]float64
	reset  []string
}

func (f *fakeHot) Inc(key string) {
	if f.scores == nil {
		f.scores = map[string]float64{}
	}
	f.scores[key]++
}

func (f *fakeHot) Score(key string) float64 { return f.scores[key] }

func (f *fakeHot) Reset(keys ...string) {
	f.reset = append(f.reset, keys...)
	for _, k := range keys {
		delete(f.scores, k)
	}
}

func TestShouldCache_ZeroThresholdAdmitsAll(t *testing.T) {
	e := &Engine{}
	if !e.ShouldCache("k") {
		t.Fatal("threshold 0 must admit")
	}
	e.Observe("k") // nil tracker is a no-op
}

func TestShouldCache_ByScore(t *testing.T) {
	h := &fakeHot{}
	e := &Engine{Hot: h, Threshold: 2}

	e.Observe("k")
	if e.ShouldCache("k") {
		t.Fatal("one request must not reach threshold 2")
	}
	e.Observe("k")
	if !e.ShouldCache("k") {
		t.Fatal("two requests must reach threshold 2")
	}
	if e.ShouldCache("") {
		t.Fatal("empty key must not be admitted")
	}

	e.Forget("k")
	if e.ShouldCache("k") || len(h.reset) != 1 {
		t.Fatalf("forget must reset hotness; reset=%v", h.reset)
	}
}

func TestShouldCache_NoTrackerRejects(t *testing.T) {
	e := &Engine{Threshold: 1}
	if e.ShouldCache("k") {
		t.Fatal("positive threshold without tracker must reject")
	}
}

func TestShouldCache_DecayedScoreStillAdmitsAtN(t *testing.T) {
	h := &fakeHot{scores: map[string]float64{"warm": 1.999, "cold": 1.9}}
	e := &Engine{Hot: h, Threshold: 2}
	if !e.ShouldCache("warm") {
		t.Fatal("two requests a moment apart must reach threshold 2")
	}
	if e.ShouldCache("cold") {
		t.Fatal("a score well below the threshold must not be admitted")
	}
}

func TestShouldCache_RealTrackerAdmitsOnSecondRequest(t *testing.T) {
	e := &Engine{Hot: expdecay.New(time.Minute), Threshold: 2}
	e.Observe("k")
	if e.ShouldCache("k") {
		t.Fatal("one request must not reach threshold 2")
	}
	e.Observe("k")
	if !e.ShouldCache("k") {
		t.Fatalf("second request must reach threshold 2; score=%v", e.Hot.Score("k"))
	}
}
