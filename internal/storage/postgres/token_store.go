package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	mint, status, bucket, priority, final_score, safety_score, market_score,
	intel, discovered_at, pool_created_at, last_analyzed_at, last_snapshot_at, last_served_at
`

// Insert adds a newly discovered token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	intel, err := marshalIntel(t.Intel)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tokens (
			mint, status, bucket, priority, final_score, safety_score, market_score,
			intel, discovered_at, pool_created_at, last_analyzed_at, last_snapshot_at, last_served_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.pool.Exec(ctx, query,
		t.Mint,
		string(t.Status),
		string(t.Bucket),
		t.Priority,
		t.FinalScore,
		t.SafetyScore,
		t.MarketScore,
		intel,
		t.DiscoveredAt,
		t.PoolCreatedAt,
		t.LastAnalyzedAt,
		t.LastSnapshotAt,
		t.LastServedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// Get retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(ctx context.Context, mint string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE mint = $1`

	row := s.pool.QueryRow(ctx, query, mint)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// Exists reports whether the mint is already known.
func (s *TokenStore) Exists(ctx context.Context, mint string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tokens WHERE mint = $1)`, mint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("token exists: %w", err)
	}
	return exists, nil
}

// ClaimDiscovered atomically flips up to limit discovered tokens to analyzing
// and returns them, oldest first. SKIP LOCKED keeps concurrent intake workers
// from ever claiming the same row.
func (s *TokenStore) ClaimDiscovered(ctx context.Context, discoveredBefore int64, limit int) ([]*domain.Token, error) {
	query := `
		UPDATE tokens SET status = $1
		WHERE mint IN (
			SELECT mint FROM tokens
			WHERE status = $2 AND discovered_at <= $3
			ORDER BY discovered_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + tokenColumns

	rows, err := s.pool.Query(ctx, query,
		string(domain.StatusAnalyzing), string(domain.StatusDiscovered), discoveredBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("claim discovered: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// RequeueAnalyzing returns tokens stranded in analyzing by a crash to the
// discovered queue. Only safe to run while no claimer is active.
func (s *TokenStore) RequeueAnalyzing(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET status = $1 WHERE status = $2`,
		string(domain.StatusDiscovered), string(domain.StatusAnalyzing))
	if err != nil {
		return 0, fmt.Errorf("requeue analyzing: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateStatus sets the status for a mint. Returns ErrNotFound if not exists.
func (s *TokenStore) UpdateStatus(ctx context.Context, mint string, status domain.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET status = $2 WHERE mint = $1`, mint, string(status))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ApplyAnalysis persists the result of one enrichment pass in a single write.
func (s *TokenStore) ApplyAnalysis(ctx context.Context, mint string, upd storage.AnalysisUpdate) error {
	intel, err := marshalIntel(upd.Intel)
	if err != nil {
		return err
	}

	query := `
		UPDATE tokens SET
			status = $2,
			bucket = $3,
			priority = $4,
			final_score = $5,
			safety_score = $6,
			market_score = $7,
			intel = $8,
			pool_created_at = COALESCE($9, pool_created_at),
			last_analyzed_at = $10,
			last_snapshot_at = CASE WHEN $11 > 0 THEN $11 ELSE last_snapshot_at END
		WHERE mint = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		mint,
		string(upd.Status),
		string(upd.Bucket),
		upd.Priority,
		upd.FinalScore,
		upd.SafetyScore,
		upd.MarketScore,
		intel,
		upd.PoolCreatedAt,
		upd.AnalyzedAt,
		upd.SnapshotAt,
	)
	if err != nil {
		return fmt.Errorf("apply analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkServed stamps last_served_at and promotes analyzed tokens to served.
// Tokens already served keep their status; only the timestamp moves.
func (s *TokenStore) MarkServed(ctx context.Context, mints []string, servedAt int64) error {
	if len(mints) == 0 {
		return nil
	}

	query := `
		UPDATE tokens SET
			last_served_at = $2,
			status = CASE WHEN status = $3 THEN $4 ELSE status END
		WHERE mint = ANY($1)
	`

	_, err := s.pool.Exec(ctx, query, mints, servedAt,
		string(domain.StatusAnalyzed), string(domain.StatusServed))
	if err != nil {
		return fmt.Errorf("mark served: %w", err)
	}
	return nil
}

// ListStaleByBucket returns analyzed/served tokens in the bucket whose last
// analysis is at or before analyzedBefore, stalest first.
func (s *TokenStore) ListStaleByBucket(ctx context.Context, bucket domain.Bucket, analyzedBefore int64, limit int) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + ` FROM tokens
		WHERE bucket = $1
		  AND status = ANY($2)
		  AND last_analyzed_at IS NOT NULL
		  AND last_analyzed_at <= $3
		ORDER BY last_analyzed_at ASC
		LIMIT $4
	`

	rows, err := s.pool.Query(ctx, query,
		string(bucket), servableStatuses(), analyzedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale by bucket: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ListByStatus returns tokens with the given status, oldest discovery first.
func (s *TokenStore) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + ` FROM tokens
		WHERE status = $1
		ORDER BY discovered_at ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ListServableByBucket returns analyzed/served tokens in the bucket with
// final score at or above minScore, best first.
func (s *TokenStore) ListServableByBucket(ctx context.Context, bucket domain.Bucket, minScore float64, limit int) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + ` FROM tokens
		WHERE bucket = $1
		  AND status = ANY($2)
		  AND final_score >= $3
		ORDER BY final_score DESC, priority DESC
		LIMIT $4
	`

	rows, err := s.pool.Query(ctx, query, string(bucket), servableStatuses(), minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("list servable by bucket: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ListByVolume returns analyzed/served tokens ordered by reported 24h volume.
func (s *TokenStore) ListByVolume(ctx context.Context, limit int) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + ` FROM tokens
		WHERE status = ANY($1)
		ORDER BY (intel->>'volume_24h_usd')::numeric DESC NULLS LAST
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, servableStatuses(), limit)
	if err != nil {
		return nil, fmt.Errorf("list by volume: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ListRecentlyAnalyzed returns analyzed/served tokens, freshest analysis first.
func (s *TokenStore) ListRecentlyAnalyzed(ctx context.Context, limit int) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + ` FROM tokens
		WHERE status = ANY($1) AND last_analyzed_at IS NOT NULL
		ORDER BY last_analyzed_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, servableStatuses(), limit)
	if err != nil {
		return nil, fmt.Errorf("list recently analyzed: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// CountByStatus returns the number of tokens per status.
func (s *TokenStore) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM tokens GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

// CountByBucket returns the number of analyzed/served tokens per bucket.
func (s *TokenStore) CountByBucket(ctx context.Context) (map[domain.Bucket]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT bucket, COUNT(*) FROM tokens WHERE status = ANY($1) GROUP BY bucket`,
		servableStatuses())
	if err != nil {
		return nil, fmt.Errorf("count by bucket: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Bucket]int64)
	for rows.Next() {
		var bucket string
		var n int64
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, fmt.Errorf("scan bucket count: %w", err)
		}
		counts[domain.Bucket(bucket)] = n
	}
	return counts, rows.Err()
}

// DeleteRejectedBefore removes rejected tokens discovered at or before cutoff.
func (s *TokenStore) DeleteRejectedBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tokens WHERE status = $1 AND discovered_at <= $2`,
		string(domain.StatusRejected), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete rejected: %w", err)
	}
	return tag.RowsAffected(), nil
}

// servableStatuses returns the statuses eligible for dispatch queries.
func servableStatuses() []string {
	return []string{string(domain.StatusAnalyzed), string(domain.StatusServed)}
}

// marshalIntel serializes intel for the JSONB column. Nil stays NULL.
func marshalIntel(intel *domain.Intel) ([]byte, error) {
	if intel == nil {
		return nil, nil
	}
	data, err := json.Marshal(intel)
	if err != nil {
		return nil, fmt.Errorf("marshal intel: %w", err)
	}
	return data, nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	var statusStr, bucketStr string
	var intel []byte

	err := row.Scan(
		&t.Mint,
		&statusStr,
		&bucketStr,
		&t.Priority,
		&t.FinalScore,
		&t.SafetyScore,
		&t.MarketScore,
		&intel,
		&t.DiscoveredAt,
		&t.PoolCreatedAt,
		&t.LastAnalyzedAt,
		&t.LastSnapshotAt,
		&t.LastServedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = domain.Status(statusStr)
	t.Bucket = domain.Bucket(bucketStr)

	if len(intel) > 0 {
		var i domain.Intel
		if err := json.Unmarshal(intel, &i); err != nil {
			return nil, fmt.Errorf("unmarshal intel: %w", err)
		}
		t.Intel = &i
	}

	return &t, nil
}

// scanTokens scans multiple rows into a slice of Token.
func scanTokens(rows pgx.Rows) ([]*domain.Token, error) {
	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}
