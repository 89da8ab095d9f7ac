package postgres

import (
	"context"
	"fmt"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

// DispatchStore implements storage.DispatchStore using PostgreSQL.
type DispatchStore struct {
	pool *Pool
}

// NewDispatchStore creates a new DispatchStore.
func NewDispatchStore(pool *Pool) *DispatchStore {
	return &DispatchStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DispatchStore = (*DispatchStore)(nil)

// Get retrieves the record for a (channel, segment) pair.
func (s *DispatchStore) Get(ctx context.Context, channelID int64, segment string) (*domain.DispatchRecord, error) {
	query := `
		SELECT channel_id, segment, message_id, updated_at
		FROM dispatch_records
		WHERE channel_id = $1 AND segment = $2
	`

	var r domain.DispatchRecord
	err := s.pool.QueryRow(ctx, query, channelID, segment).Scan(
		&r.ChannelID,
		&r.Segment,
		&r.MessageID,
		&r.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get dispatch record: %w", err)
	}
	return &r, nil
}

// Upsert inserts or replaces the record for its (channel, segment) pair.
func (s *DispatchStore) Upsert(ctx context.Context, r *domain.DispatchRecord) error {
	query := `
		INSERT INTO dispatch_records (channel_id, segment, message_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel_id, segment)
		DO UPDATE SET message_id = EXCLUDED.message_id, updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, r.ChannelID, r.Segment, r.MessageID, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert dispatch record: %w", err)
	}
	return nil
}
