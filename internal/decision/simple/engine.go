package simple

import (
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/decision"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/hotness"
)

// scoreSlack absorbs the decay between requests, so a threshold of N admits
// the Nth request when requests arrive well within one half-life.
const scoreSlack = 0.05

// Engine admits a key once its hotness score reaches Threshold. A threshold
// of zero or less admits everything.
type Engine struct {
	Hot       hotness.Interface
	Threshold float64
}

var _ decision.Interface = (*Engine)(nil)

func (e *Engine) Observe(key string) {
	if e.Hot != nil {
		e.Hot.Inc(key)
	}
}

func (e *Engine) ShouldCache(key string) bool {
	if e.Threshold <= 0 {
		return true
	}
	if e.Hot == nil || key == "" {
		return false
	}
	return e.Hot.Score(key)+scoreSlack >= e.Threshold
}

// Forget clears the hotness of purged keys.
func (e *Engine) Forget(keys ...string) {
	if e.Hot != nil {
		e.Hot.Reset(keys...)
	}
}
