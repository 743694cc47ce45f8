package cache

import (
	"sync"
	"time"
)

// Store is a process-local key/value store with per-entry expiry. The
// sync engine keeps resolved contact form ids here so that repeated sync
// cycles skip the remote form listing until the entry expires.
type Store interface {
	Get(key string) (string, bool)
	Set(key string, value string, ttl time.Duration)
	Delete(key string)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the default Store backed by a mutex-guarded map.
// Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the value for key if present and not expired
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return "", false
	}
	return e.value, true
}

// Set stores value under key for the given ttl
func (s *MemoryStore) Set(key string, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
}

// Delete removes key from the store
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// SlidingCounter counts events per key inside a sliding window. Used to
// throttle login attempts per client address.
type SlidingCounter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewSlidingCounter creates a counter allowing limit events per window
func NewSlidingCounter(limit int, window time.Duration) *SlidingCounter {
	return &SlidingCounter{
		window: window,
		limit:  limit,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records an event for key and reports whether it is within the limit
func (c *SlidingCounter) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-c.window)

	kept := c.hits[key][:0]
	for _, t := range c.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= c.limit {
		c.hits[key] = kept
		return false
	}

	c.hits[key] = append(kept, now)
	return true
}

// Reset clears the counter for key, typically after a successful login
func (c *SlidingCounter) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hits, key)
}
