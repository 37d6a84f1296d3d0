// Package invalidation defines the purge events that remove encoded filters
// from the cache.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxKeys bounds one event so a single message cannot stall the consumer.
const MaxKeys = 1000

const keyPrefix = "fe:"

// Event names cache keys to drop. Keys are the X-Cache-Key values returned by
// the encode endpoints and carried on encode events.
type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Keys    []string  `json:"keys"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return errors.New("version must be 1")
	}
	if e.Op != "purge" {
		return errors.New("op must be purge")
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	if len(e.Keys) == 0 {
		return errors.New("keys is required")
	}
	if len(e.Keys) > MaxKeys {
		return fmt.Errorf("at most %d keys per event, got %d", MaxKeys, len(e.Keys))
	}
	for i, k := range e.Keys {
		if !strings.HasPrefix(k, keyPrefix) {
			return fmt.Errorf("keys[%d] %q is not a filter cache key", i, k)
		}
	}
	return nil
}

// UniqueKeys returns Keys without duplicates, first occurrence first.
func (e Event) UniqueKeys() []string {
	seen := make(map[string]struct{}, len(e.Keys))
	out := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
