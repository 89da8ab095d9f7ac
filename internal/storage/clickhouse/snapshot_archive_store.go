package clickhouse

import (
	"context"
	"fmt"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

// SnapshotArchiveStore implements storage.SnapshotArchive using ClickHouse.
// The archive is append-only; pruning happens via the table's TTL clause.
type SnapshotArchiveStore struct {
	conn *Conn
}

// NewSnapshotArchiveStore creates a new SnapshotArchiveStore.
func NewSnapshotArchiveStore(conn *Conn) *SnapshotArchiveStore {
	return &SnapshotArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotArchive = (*SnapshotArchiveStore)(nil)

// InsertBatch appends a batch of snapshots.
func (s *SnapshotArchiveStore) InsertBatch(ctx context.Context, snapshots []*domain.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO snapshot_archive (
			mint, price_usd, liquidity_usd, volume_24h_usd, market_cap_usd, price_change_24h, taken_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.Mint,
			snap.PriceUsd,
			snap.LiquidityUsd,
			snap.Volume24hUsd,
			snap.MarketCapUsd,
			snap.PriceChange24h,
			uint64(snap.TakenAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}
