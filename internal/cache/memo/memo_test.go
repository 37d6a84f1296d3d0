package memo

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStore_GetSetDel(t *testing.T) {
	s := New(8, time.Minute)
	if _, ok := s.Get("k"); ok {
		t.Fatal("empty store reported a hit")
	}
	s.Set("k", []byte("v"))
	got, ok := s.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("Get = %q,%v", got, ok)
	}
	s.Del("k")
	if _, ok := s.Get("k"); ok {
		t.Fatal("deleted key still present")
	}
}

func TestStore_ExpiresEntries(t *testing.T) {
	s := New(8, 50*time.Millisecond)
	s.Set("short", []byte("a"))

	time.Sleep(120 * time.Millisecond)
	if _, ok := s.Get("short"); ok {
		t.Fatal("expired entry served")
	}

	forever := New(8, 0)
	forever.Set("k", []byte("b"))
	time.Sleep(10 * time.Millisecond)
	if _, ok := forever.Get("k"); !ok {
		t.Fatal("entry without ttl was dropped")
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s := New(2, 0)
	s.Set("a", []byte("1"))
	s.Set("b", []byte("2"))
	s.Get("a")
	s.Set("c", []byte("3"))

	if _, ok := s.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := s.Get("a"); !ok {
		t.Fatal("a was recently used and should survive")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New(64, time.Minute)
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k := fmt.Sprintf("k%d", i%8)
			s.Set(k, []byte(k))
			if v, ok := s.Get(k); ok && string(v) != k {
				t.Errorf("got %q for %s", v, k)
			}
		}()
	}
	wg.Wait()
}
