// Package metricswrap reports hotness tracker size and hot-key crossings.
package metricswrap

import (
	"context"
	"fmt"
	"log/slog"

	xx "github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/hotness"
	mylog "github.com/mohammed-shakir/wfs-filter-encoding/internal/logger"
)

type Sizer interface{ Size() int }

type WithMetrics struct {
	inner     hotness.Interface
	log       *slog.Logger
	threshold float64
	sample    float64
}

// New wraps inner. A key whose score reaches threshold is logged for a
// sample fraction of keys; threshold <= 0 disables the log.
func New(inner hotness.Interface, log *slog.Logger, threshold, sample float64) *WithMetrics {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &WithMetrics{inner: inner, log: log, threshold: threshold, sample: sample}
}

func (w *WithMetrics) Inc(key string) {
	w.inner.Inc(key)
	if w.threshold > 0 {
		if score := w.inner.Score(key); score >= w.threshold && shouldLog(w.sample, key) {
			ctx := mylog.WithComponent(context.Background(), "hotness")
			w.log.InfoContext(ctx, "hot key above threshold",
				"score", score,
				"key_hash", fmt.Sprintf("%08x", xx.Sum64String(key)))
		}
	}
	w.report()
}

func (w *WithMetrics) Score(key string) float64 {
	return w.inner.Score(key)
}

func (w *WithMetrics) Reset(keys ...string) {
	w.inner.Reset(keys...)
	w.report()
}

func (w *WithMetrics) report() {
	if s, ok := w.inner.(Sizer); ok {
		observability.SetHotKeys(s.Size())
	}
}

func shouldLog(sample float64, key string) bool {
	if sample <= 0 {
		return false
	}
	if sample >= 1 {
		return true
	}
	const denom = 10000 // 0.01 => 100/10000
	threshold := uint64(sample*denom + 0.5)
	if threshold == 0 {
		return false
	}
	return xx.Sum64String(key)%denom < threshold
}
