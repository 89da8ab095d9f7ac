package memory

import (
	"context"
	"sync"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu     sync.RWMutex
	data   []*domain.Snapshot
	nextID int64
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{nextID: 1}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a new snapshot.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.Snapshot) error {
	if snap == nil || snap.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapCopy := *snap
	snapCopy.ID = s.nextID
	s.nextID++
	snap.ID = snapCopy.ID
	s.data = append(s.data, &snapCopy)
	return nil
}

// Latest returns the freshest snapshot for a mint.
func (s *SnapshotStore) Latest(_ context.Context, mint string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Snapshot
	for _, snap := range s.data {
		if snap.Mint != mint {
			continue
		}
		if latest == nil || snap.TakenAt > latest.TakenAt {
			latest = snap
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	snapCopy := *latest
	return &snapCopy, nil
}

// DeleteBefore removes snapshots taken at or before cutoff.
func (s *SnapshotStore) DeleteBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*domain.Snapshot
	var removed int64
	for _, snap := range s.data {
		if snap.TakenAt <= cutoff {
			removed++
			continue
		}
		kept = append(kept, snap)
	}
	s.data = kept
	return removed, nil
}
