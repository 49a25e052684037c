package oidc

import (
	"context"
	"sync"
)

// Storage keys used by the Client.
const (
	storageKeyUser = "oidc.user"
	storageKeyFlow = "oidc.flow"
)

// Storage persists the user record and the pending authorization flow state
// across page loads.  A (nil, nil) Get means "not present".  Implementations
// must be concurrently safe.
//
// Persistence strategy is deliberately left to the host: browser hosts back
// it with session storage, tests and short-lived hosts use MemoryStorage.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStorage implements the Storage interface in memory.  It is
// concurrently safe.
type MemoryStorage struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// ensure that MemoryStorage implements the Storage interface
var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string][]byte)}
}

// Get implements the Storage interface.
func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// Set implements the Storage interface.
func (s *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.m[key] = cp
	return nil
}

// Delete implements the Storage interface.
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
