package cache

import (
	"sync"
	"time"
)

// Store is a keyed expiring cache. Entries are replaced wholesale, never
// patched in place. The clock is injected so tests can control expiry
// without sleeping; the zero Clock means time.Now.
//
// Expired entries are retained until overwritten: Lookup exposes them so
// services can serve a stale result when every live tier has failed.
type Store[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry[T]
}

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

func New[T any](ttl time.Duration, now func() time.Time) *Store[T] {
	if now == nil {
		now = time.Now
	}
	return &Store[T]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry[T]),
	}
}

// Get returns the entry for key if present and still fresh.
func (s *Store[T]) Get(key string) (T, bool) {
	v, ok, fresh := s.Lookup(key)
	if !ok || !fresh {
		var zero T
		return zero, false
	}
	return v, true
}

// Lookup returns the entry for key regardless of freshness, plus whether it
// is still within its TTL.
func (s *Store[T]) Lookup(key string) (value T, ok, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false, false
	}
	return e.value, true, s.now().Before(e.expiresAt)
}

func (s *Store[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{value: value, expiresAt: s.now().Add(s.ttl)}
}

func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry[T])
}
