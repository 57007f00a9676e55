package delivery

import (
	"sync"
	"time"
)

// ExpiringSet is a set whose members evict themselves after a fixed TTL.
// It backs per-connection notification dedup, so it is never shared across
// connections.
type ExpiringSet struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*setEntry
	closed  bool
}

type setEntry struct {
	expiresAt time.Time
	timer     *time.Timer
}

func NewExpiringSet(ttl time.Duration) *ExpiringSet {
	return &ExpiringSet{
		ttl:     ttl,
		entries: make(map[string]*setEntry),
	}
}

// Add inserts the key with the set's TTL. It reports false when the key is
// already present and unexpired, which is the dedup signal.
func (s *ExpiringSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	now := time.Now()
	if entry, ok := s.entries[key]; ok && now.Before(entry.expiresAt) {
		return false
	}

	entry := &setEntry{expiresAt: now.Add(s.ttl)}
	entry.timer = time.AfterFunc(s.ttl, func() { s.evict(key) })
	if old, ok := s.entries[key]; ok {
		old.timer.Stop()
	}
	s.entries[key] = entry
	return true
}

// Contains reports whether the key is present and unexpired.
func (s *ExpiringSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return ok && time.Now().Before(entry.expiresAt)
}

// Len reports the number of unexpired members.
func (s *ExpiringSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now()
	for _, entry := range s.entries {
		if now.Before(entry.expiresAt) {
			n++
		}
	}
	return n
}

func (s *ExpiringSet) evict(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if ok && !time.Now().Before(entry.expiresAt) {
		delete(s.entries, key)
	}
}

// Close stops all pending eviction timers. The set rejects inserts afterwards.
func (s *ExpiringSet) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for key, entry := range s.entries {
		entry.timer.Stop()
		delete(s.entries, key)
	}
}
