package memory

import (
	"context"
	"sync"

	"solana-token-scout/internal/storage"
)

// KVStore is an in-memory implementation of storage.KVStore.
type KVStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewKVStore creates a new in-memory KV store.
func NewKVStore() *KVStore {
	return &KVStore{
		data: make(map[string]string),
	}
}

// Compile-time interface check.
var _ storage.KVStore = (*KVStore)(nil)

// Get retrieves a value. Returns ErrNotFound if the key does not exist.
func (s *KVStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return "", storage.ErrNotFound
	}
	return value, nil
}

// Set inserts or replaces a value.
func (s *KVStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}
