package rbac

import (
	"context"
	"sync"
	"time"
)

// Slot is a single-entry cache. Storing under a new key replaces the previous
// entry, and a lookup with any other key is a miss.
type Slot[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
	Invalidate(ctx context.Context)
}

// MemorySlot is an in-process Slot with an optional TTL
type MemorySlot[V any] struct {
	mu       sync.RWMutex
	key      string
	value    V
	filled   bool
	storedAt time.Time
	ttl      time.Duration // zero means entries never expire
	now      func() time.Time
}

// NewMemorySlot creates an empty slot
func NewMemorySlot[V any](ttl time.Duration) *MemorySlot[V] {
	return &MemorySlot[V]{
		ttl: ttl,
		now: time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *MemorySlot[V]) WithClock(now func() time.Time) *MemorySlot[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Get returns the value stored under key while it is fresh
func (s *MemorySlot[V]) Get(ctx context.Context, key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero V
	if !s.filled || s.key != key {
		return zero, false
	}
	if s.ttl > 0 && !s.now().Before(s.storedAt.Add(s.ttl)) {
		return zero, false
	}
	return s.value, true
}

// Set replaces the slot contents
func (s *MemorySlot[V]) Set(ctx context.Context, key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.key = key
	s.value = value
	s.filled = true
	s.storedAt = s.now()
}

// Invalidate empties the slot
func (s *MemorySlot[V]) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	s.key = ""
	s.value = zero
	s.filled = false
	s.storedAt = time.Time{}
}

// StoredAt returns when the current entry was written, zero when empty
func (s *MemorySlot[V]) StoredAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storedAt
}
