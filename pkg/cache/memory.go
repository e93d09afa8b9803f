package cache

import (
	"context"
	"sync"
	"time"

	"github.com/doorman-proxy/doorman/pkg/clock"
)

// MemoryStore is an in-process implementation of the Store interface.
// Expiry is lazy: entries are dropped when read past their deadline and
// swept opportunistically on writes.
type MemoryStore struct {
	mu       sync.RWMutex
	store    map[string][]byte
	timeouts map[string]time.Time
}

// NewMemoryStore creates a new in-process cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		store:    make(map[string][]byte),
		timeouts: make(map[string]time.Time),
	}
}

// Get retrieves a cached value. The boolean reports presence.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	deadline, ok := s.timeouts[key]
	value, present := s.store[key]
	s.mu.RUnlock()

	if !ok || !present {
		return nil, false, nil
	}
	if clock.Now().After(deadline) {
		s.mu.Lock()
		delete(s.store, key)
		delete(s.timeouts, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores a value with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic sweep so abandoned keys don't pile up between reads.
	for k, deadline := range s.timeouts {
		if now.After(deadline) {
			delete(s.store, k)
			delete(s.timeouts, k)
		}
	}

	s.store[key] = value
	s.timeouts[key] = now.Add(ttl)
	return nil
}

// Del removes a cached value.
func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.store, key)
	delete(s.timeouts, key)
	return nil
}

// Ping is a no-op for in-process storage.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
