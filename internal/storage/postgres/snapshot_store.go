package postgres

import (
	"context"
	"fmt"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a new snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.Snapshot) error {
	query := `
		INSERT INTO token_snapshots (
			mint, price_usd, liquidity_usd, volume_24h_usd, market_cap_usd, price_change_24h, taken_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		snap.Mint,
		snap.PriceUsd,
		snap.LiquidityUsd,
		snap.Volume24hUsd,
		snap.MarketCapUsd,
		snap.PriceChange24h,
		snap.TakenAt,
	).Scan(&snap.ID)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the freshest snapshot for a mint.
func (s *SnapshotStore) Latest(ctx context.Context, mint string) (*domain.Snapshot, error) {
	query := `
		SELECT id, mint, price_usd, liquidity_usd, volume_24h_usd, market_cap_usd, price_change_24h, taken_at
		FROM token_snapshots
		WHERE mint = $1
		ORDER BY taken_at DESC
		LIMIT 1
	`

	var snap domain.Snapshot
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&snap.ID,
		&snap.Mint,
		&snap.PriceUsd,
		&snap.LiquidityUsd,
		&snap.Volume24hUsd,
		&snap.MarketCapUsd,
		&snap.PriceChange24h,
		&snap.TakenAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteBefore removes snapshots taken at or before cutoff.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM token_snapshots WHERE taken_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
