package pointer

import (
	"context"
	"sync"
)

// MemoryStore keeps pointers in process memory. It survives nothing and is
// meant for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	pointers map[string]Pointer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pointers: make(map[string]Pointer)}
}

func (m *MemoryStore) Load(_ context.Context, scope string) (*Pointer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pointers[scope]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) Save(_ context.Context, scope string, p Pointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointers[scope] = p
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pointers, scope)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
