package cache

import (
	"context"
	"sync"
	"time"

	"github.com/resumeforge/orchestrator/internal/workflow"
)

// MemoryStore is an in-process Store for tests and single-node
// embedding. Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	out       workflow.Outcome
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, sessionID, stepID string) (workflow.Outcome, bool, error) {
	key := Key(sessionID, stepID)

	s.mu.RLock()
	ent, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.now().After(ent.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return ent.out, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, sessionID, stepID string, out workflow.Outcome, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	s.entries[Key(sessionID, stepID)] = memoryEntry{out: out, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Len reports the number of live entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
