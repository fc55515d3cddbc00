package sessionstore

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu     sync.Mutex
	record *Record
}

// NewMemory returns a non-durable in-process store, used by tests and the
// memory session driver.
func NewMemory() Store {
	return &memoryStore{}
}

func (s *memoryStore) Load(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return nil, ErrNotFound
	}
	copied := *s.record
	return &copied, nil
}

func (s *memoryStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.record = &copied
	return nil
}

func (s *memoryStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	return nil
}
