package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// schema. Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applySchema(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applySchema mirrors the embedded migrations. Kept inline because importing
// internal/storage/migrations from here would create an import cycle.
func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			mint             TEXT PRIMARY KEY,
			status           TEXT NOT NULL,
			bucket           TEXT NOT NULL DEFAULT '',
			priority         INTEGER NOT NULL DEFAULT 0,
			final_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
			safety_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
			market_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
			intel            JSONB,
			discovered_at    BIGINT NOT NULL,
			pool_created_at  BIGINT,
			last_analyzed_at BIGINT,
			last_snapshot_at BIGINT,
			last_served_at   BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS token_snapshots (
			id               BIGSERIAL PRIMARY KEY,
			mint             TEXT NOT NULL,
			price_usd        DOUBLE PRECISION NOT NULL DEFAULT 0,
			liquidity_usd    DOUBLE PRECISION NOT NULL DEFAULT 0,
			volume_24h_usd   DOUBLE PRECISION NOT NULL DEFAULT 0,
			market_cap_usd   DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_change_24h DOUBLE PRECISION NOT NULL DEFAULT 0,
			taken_at         BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dispatch_records (
			channel_id BIGINT NOT NULL,
			segment    TEXT NOT NULL,
			message_id BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (channel_id, segment)
		)`,
		`CREATE TABLE IF NOT EXISTS kv_state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, "failed to apply schema")
	}
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
