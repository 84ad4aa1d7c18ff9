package session

import (
	"context"
	"sync"
)

// MemoryStore is the reference Store implementation, keyed by Key.String().
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	maxTurns int
}

// NewMemoryStore creates an in-memory store. maxTurns bounds per-session
// history; zero means unbounded.
func NewMemoryStore(maxTurns int) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]Turn),
		maxTurns: maxTurns,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key Key) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns, ok := s.sessions[key.String()]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, key Key, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := key.String()
	history := append(s.sessions[id], turns...)
	if s.maxTurns > 0 && len(history) > s.maxTurns {
		history = history[len(history)-s.maxTurns:]
	}
	s.sessions[id] = history
	return nil
}

func (s *MemoryStore) Count(ctx context.Context, key Key) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[key.String()]), nil
}
