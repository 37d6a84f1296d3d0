// Package cache implements the two-tier cache for encoded filter output: an
// in-process LRU in front of an optional shared Redis.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/cache/memo"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/decision"
)

const (
	TierMemo  = "memo"
	TierRedis = "redis"
	TierNone  = "miss"
)

// Remote is the shared tier. redisstore.Client satisfies it.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Config struct {
	TTL       time.Duration
	OpTimeout time.Duration
	// Admit gates redis writes; nil writes every encoding through.
	Admit decision.Interface
}

type Tiered struct {
	memo   *memo.Store
	remote Remote
	cfg    Config
	log    *slog.Logger
}

// New builds a tiered cache. remote may be nil, leaving only the memo tier.
func New(m *memo.Store, remote Remote, cfg Config, log *slog.Logger) *Tiered {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	return &Tiered{memo: m, remote: remote, cfg: cfg, log: log}
}

// Get returns the cached value and the tier that served it. Redis failures
// are logged and reported as a miss.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, string, bool) {
	if t.cfg.Admit != nil {
		t.cfg.Admit.Observe(key)
	}
	if t.memo != nil {
		if v, ok := t.memo.Get(key); ok {
			observability.IncCacheHit(TierMemo)
			return v, TierMemo, true
		}
	}
	if t.remote != nil {
		opCtx, cancel := context.WithTimeout(ctx, t.cfg.OpTimeout)
		v, ok, err := t.remote.Get(opCtx, key)
		cancel()
		switch {
		case err != nil:
			t.log.WarnContext(ctx, "redis get failed, treating as miss", "key", key, "err", err)
		case ok:
			if t.memo != nil {
				t.memo.Set(key, v)
			}
			observability.IncCacheHit(TierRedis)
			return v, TierRedis, true
		}
	}
	observability.IncCacheMiss()
	return nil, TierNone, false
}

// Set writes to memo, and to Redis when the admission decision allows it. A
// Redis failure is logged, never returned.
func (t *Tiered) Set(ctx context.Context, key string, val []byte) {
	if t.memo != nil {
		t.memo.Set(key, val)
	}
	if t.remote == nil {
		return
	}
	if t.cfg.Admit != nil {
		ok := t.cfg.Admit.ShouldCache(key)
		observability.IncAdmission(ok)
		if !ok {
			return
		}
	}
	opCtx, cancel := context.WithTimeout(ctx, t.cfg.OpTimeout)
	defer cancel()
	if err := t.remote.Set(opCtx, key, val, t.cfg.TTL); err != nil {
		t.log.WarnContext(ctx, "redis set failed", "key", key, "err", err)
	}
}

func (t *Tiered) Del(ctx context.Context, keys ...string) error {
	if t.memo != nil {
		t.memo.Del(keys...)
	}
	if t.remote == nil {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, t.cfg.OpTimeout)
	defer cancel()
	return t.remote.Del(opCtx, keys...)
}
