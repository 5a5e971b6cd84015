// Package memory implements store.Store in process memory, for single-node
// deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"goa.design/responses-bridge/store"
)

type entry struct {
	turn      *store.StoredTurn
	expiresAt time.Time
}

// Store is an in-memory, mutex-guarded implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

var _ store.Store = (*Store)(nil)

// New constructs an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Get returns the stored turn for responseID, or store.ErrNotFound if
// absent or expired.
func (s *Store) Get(ctx context.Context, responseID string) (*store.StoredTurn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[responseID]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, store.ErrNotFound
	}
	return e.turn, nil
}

// Put stores turn under responseID with the given TTL.
func (s *Store) Put(ctx context.Context, responseID string, turn *store.StoredTurn, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[responseID] = entry{turn: turn, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes the entry for responseID, reporting whether one existed.
// It is idempotent: deleting twice is not an error.
func (s *Store) Delete(ctx context.Context, responseID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.entries[responseID]
	delete(s.entries, responseID)
	return existed, nil
}
