package challenge

import (
	"context"
	"sync"
	"time"
)

// Store keeps issued challenges until they are verified or expire.
type Store interface {
	Save(ctx context.Context, c *Challenge) error
	// Take returns the challenge and removes it. Unknown ids yield
	// ErrNotFound.
	Take(ctx context.Context, id string) (*Challenge, error)
	// Purge drops challenges created before cutoff and returns how many.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// MemoryStore is a Store backed by a map.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{challenges: make(map[string]Challenge)}
}

func (s *MemoryStore) Save(_ context.Context, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.ID] = *c
	return nil
}

func (s *MemoryStore) Take(_ context.Context, id string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.challenges, id)
	return &c, nil
}

func (s *MemoryStore) Purge(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.challenges {
		if c.CreatedAt.Before(cutoff) {
			delete(s.challenges, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
