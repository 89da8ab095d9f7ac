package storage

import (
	"context"

	"solana-token-scout/internal/domain"
)

// AnalysisUpdate carries the result of one enrichment pass. Applied to a
// token row in a single write so a crash between fields cannot be observed.
type AnalysisUpdate struct {
	Status        domain.Status
	Bucket        domain.Bucket
	Priority      int
	FinalScore    float64
	SafetyScore   float64
	MarketScore   float64
	Intel         *domain.Intel
	PoolCreatedAt *int64 // ms, set when enrichment learned the pool birth time
	AnalyzedAt    int64  // ms
	SnapshotAt    int64  // ms, zero when no snapshot was stored this pass
}

// TokenStore provides access to the tokens table, the asset state machine.
type TokenStore interface {
	// Insert adds a newly discovered token. Returns ErrDuplicateKey if the
	// mint already exists.
	Insert(ctx context.Context, t *domain.Token) error

	// Get retrieves a token by mint. Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint string) (*domain.Token, error)

	// Exists reports whether the mint is already known.
	Exists(ctx context.Context, mint string) (bool, error)

	// ClaimDiscovered atomically flips up to limit tokens from discovered to
	// analyzing and returns them, oldest first. Only tokens discovered at or
	// before discoveredBefore are eligible. Claiming and the status
	// transition happen in one storage-enforced step so concurrent intake
	// workers never double-process a row.
	ClaimDiscovered(ctx context.Context, discoveredBefore int64, limit int) ([]*domain.Token, error)

	// RequeueAnalyzing flips every analyzing token back to discovered so
	// work claimed by a crashed process is claimable again. Run at startup,
	// before any claimer. Returns the number of rows requeued.
	RequeueAnalyzing(ctx context.Context) (int64, error)

	// UpdateStatus sets the status for a mint. Returns ErrNotFound if not exists.
	UpdateStatus(ctx context.Context, mint string, status domain.Status) error

	// ApplyAnalysis persists the result of one enrichment pass.
	ApplyAnalysis(ctx context.Context, mint string, upd AnalysisUpdate) error

	// MarkServed stamps last_served_at and promotes analyzed tokens to served.
	MarkServed(ctx context.Context, mints []string, servedAt int64) error

	// ListStaleByBucket returns analyzed or served tokens in the bucket whose
	// last analysis is at or before analyzedBefore, stalest first.
	ListStaleByBucket(ctx context.Context, bucket domain.Bucket, analyzedBefore int64, limit int) ([]*domain.Token, error)

	// ListByStatus returns tokens with the given status, oldest discovery first.
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.Token, error)

	// ListServableByBucket returns analyzed or served tokens in the bucket
	// with final score at or above minScore, best first.
	ListServableByBucket(ctx context.Context, bucket domain.Bucket, minScore float64, limit int) ([]*domain.Token, error)

	// ListByVolume returns analyzed or served tokens ordered by reported
	// 24h volume, highest first. Fallback query for dispatch segments.
	ListByVolume(ctx context.Context, limit int) ([]*domain.Token, error)

	// ListRecentlyAnalyzed returns analyzed or served tokens ordered by last
	// analysis time, freshest first. Last-resort dispatch fallback.
	ListRecentlyAnalyzed(ctx context.Context, limit int) ([]*domain.Token, error)

	// CountByStatus returns the number of tokens per status.
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)

	// CountByBucket returns the number of analyzed/served tokens per bucket.
	CountByBucket(ctx context.Context) (map[domain.Bucket]int64, error)

	// DeleteRejectedBefore removes rejected tokens discovered at or before
	// cutoff. Returns the number of rows removed.
	DeleteRejectedBefore(ctx context.Context, cutoff int64) (int64, error)
}

// SnapshotStore provides access to the token_snapshots history table.
type SnapshotStore interface {
	// Insert adds a new snapshot. Snapshots are immutable once written.
	Insert(ctx context.Context, s *domain.Snapshot) error

	// Latest returns the freshest snapshot for a mint. Returns ErrNotFound
	// if the mint has no snapshots.
	Latest(ctx context.Context, mint string) (*domain.Snapshot, error)

	// DeleteBefore removes snapshots taken at or before cutoff. Returns the
	// number of rows removed.
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// DispatchStore provides access to dispatch_records, one row per
// (channel, segment) pair.
type DispatchStore interface {
	// Get retrieves the record for a pair. Returns ErrNotFound if not exists.
	Get(ctx context.Context, channelID int64, segment string) (*domain.DispatchRecord, error)

	// Upsert inserts or replaces the record for its (channel, segment) pair.
	Upsert(ctx context.Context, r *domain.DispatchRecord) error
}

// KVStore holds small operational state (last maintenance run, restored
// adaptive batch size) that must survive restarts.
type KVStore interface {
	// Get retrieves a value. Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or replaces a value.
	Set(ctx context.Context, key, value string) error
}

// SnapshotArchive is an optional append-only analytics sink for snapshots,
// written in batches alongside the primary store.
type SnapshotArchive interface {
	// InsertBatch appends a batch of snapshots.
	InsertBatch(ctx context.Context, snapshots []*domain.Snapshot) error
}
