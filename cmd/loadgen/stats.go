package main

import (
	"math"
	"time"
)

// one sample per request
type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	Cache     string
	ErrorMsg  string
	BoxIndex  int
}

type summary struct {
	StartTime     time.Time        `json:"start"`
	EndTime       time.Time        `json:"end"`
	DurationSec   float64          `json:"duration_sec"`
	TotalRequests int64            `json:"total"`
	SuccessCount  int64            `json:"success"`
	ErrorCount    int64            `json:"errors"`
	ThroughputRPS float64          `json:"throughput_rps"`
	P50Ms         float64          `json:"p50_ms"`
	P95Ms         float64          `json:"p95_ms"`
	P99Ms         float64          `json:"p99_ms"`
	CacheTiers    map[string]int64 `json:"cache_tiers"`
	HitRatio      float64          `json:"hit_ratio"`
	Concurrency   int              `json:"concurrency"`
	ZipfS         float64          `json:"zipf_s"`
	ZipfV         float64          `json:"zipf_v"`
	Boxes         int              `json:"boxes"`
	TargetURL     string           `json:"target"`
	Format        string           `json:"format"`
}

type aggregate struct {
	total   int64
	success int64
	errors  int64
	tiers   map[string]int64
	latMs   []float64
}

func (a *aggregate) add(s sample) {
	a.total++
	if s.ErrorMsg != "" || s.Status < 200 || s.Status >= 300 {
		a.errors++
		return
	}
	a.success++
	a.latMs = append(a.latMs, float64(s.Latency.Microseconds())/1000.0)
	if a.tiers == nil {
		a.tiers = make(map[string]int64)
	}
	a.tiers[s.Cache]++
}

// hitRatio is the share of successful requests not served by the encoder.
func (a *aggregate) hitRatio() float64 {
	if a.success == 0 {
		return 0
	}
	return float64(a.success-a.tiers["miss"]) / float64(a.success)
}

// percentile interpolates linearly between closest ranks of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	k := (p / 100.0) * float64(len(sorted)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	d := k - f
	return sorted[i]*(1-d) + sorted[i+1]*d
}
