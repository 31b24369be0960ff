// Package memstore provides an in-memory implementation of
// pipeline.SeenStore. Dedup state is lost on restart.
package memstore

import (
	"context"
	"sync"
)

// Store remembers processed alert identities in memory.
type Store struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// Seen reports whether identity was already processed.
func (s *Store) Seen(_ context.Context, identity string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[identity]
	return ok, nil
}

// MarkSeen records identity as processed.
func (s *Store) MarkSeen(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[identity] = struct{}{}
	return nil
}
