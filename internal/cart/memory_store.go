package cart

import (
	"context"
	"sync"
)

// MemoryStore keeps carts in process memory. Used when Redis is not configured.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string][]Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]Item)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[key]
	return &Cart{Items: append([]Item(nil), items...)}, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == nil || c.Len() == 0 {
		delete(s.carts, key)
		return nil
	}
	s.carts[key] = append([]Item(nil), c.Items...)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, key)
	return nil
}
