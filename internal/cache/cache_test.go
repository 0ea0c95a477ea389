package cache

import (
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func TestStoreGet(t *testing.T) {
	clk := newClock()
	store := New[string](time.Minute, clk.Now)

	if _, ok := store.Get("k"); ok {
		t.Fatal("expected miss on empty store")
	}

	store.Set("k", "v")
	v, ok := store.Get("k")
	if !ok || v != "v" {
		t.Fatalf("expected hit, got %q ok=%v", v, ok)
	}

	clk.Advance(59 * time.Second)
	if _, ok := store.Get("k"); !ok {
		t.Fatal("entry expired early")
	}

	clk.Advance(2 * time.Second)
	if _, ok := store.Get("k"); ok {
		t.Fatal("expected expiry after TTL")
	}
}

func TestStoreLookupServesStale(t *testing.T) {
	clk := newClock()
	store := New[int](time.Minute, clk.Now)
	store.Set("k", 42)

	clk.Advance(2 * time.Minute)

	v, ok, fresh := store.Lookup("k")
	if !ok || fresh {
		t.Fatalf("expected stale hit, got ok=%v fresh=%v", ok, fresh)
	}
	if v != 42 {
		t.Fatalf("stale value: got %d", v)
	}

	// A fresh write replaces the stale entry wholesale.
	store.Set("k", 43)
	v2, ok, fresh := store.Lookup("k")
	if !ok || !fresh || v2 != 43 {
		t.Fatalf("expected fresh 43, got %d ok=%v fresh=%v", v2, ok, fresh)
	}
}

func TestStoreReset(t *testing.T) {
	store := New[string](time.Minute, nil)
	store.Set("a", "1")
	store.Set("b", "2")
	store.Reset()
	if _, ok, _ := store.Lookup("a"); ok {
		t.Fatal("expected empty store after reset")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := New[int](time.Minute, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Set("shared", n)
				store.Get("shared")
				store.Lookup("shared")
			}
		}(i)
	}
	wg.Wait()
	if _, ok := store.Get("shared"); !ok {
		t.Fatal("expected value after concurrent writes")
	}
}
