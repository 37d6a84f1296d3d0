// Package memo is the in-process tier of the encoded filter cache.
package memo

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store is a bounded LRU of encoded outputs that expire ttl after being
// written. It is safe for concurrent use.
type Store struct {
	lru *expirable.LRU[string, []byte]
}

// New builds a store of at most size entries; ttl <= 0 keeps entries until
// they are evicted.
func New(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = 4096
	}
	return &Store{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *Store) Get(key string) ([]byte, bool) {
	return s.lru.Get(key)
}

func (s *Store) Set(key string, val []byte) {
	s.lru.Add(key, val)
}

func (s *Store) Del(keys ...string) {
	for _, k := range keys {
		s.lru.Remove(k)
	}
}

func (s *Store) Len() int { return s.lru.Len() }
