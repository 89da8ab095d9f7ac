package memory

import (
	"context"
	"fmt"
	"sync"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

// DispatchStore is an in-memory implementation of storage.DispatchStore.
type DispatchStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DispatchRecord // keyed by channel_id/segment
}

// NewDispatchStore creates a new in-memory dispatch store.
func NewDispatchStore() *DispatchStore {
	return &DispatchStore{
		data: make(map[string]*domain.DispatchRecord),
	}
}

// Compile-time interface check.
var _ storage.DispatchStore = (*DispatchStore)(nil)

func dispatchKey(channelID int64, segment string) string {
	return fmt.Sprintf("%d/%s", channelID, segment)
}

// Get retrieves the record for a (channel, segment) pair.
func (s *DispatchStore) Get(_ context.Context, channelID int64, segment string) (*domain.DispatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[dispatchKey(channelID, segment)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recordCopy := *r
	return &recordCopy, nil
}

// Upsert inserts or replaces the record for its (channel, segment) pair.
func (s *DispatchStore) Upsert(_ context.Context, r *domain.DispatchRecord) error {
	if r == nil || r.Segment == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *r
	s.data[dispatchKey(r.ChannelID, r.Segment)] = &recordCopy
	return nil
}
