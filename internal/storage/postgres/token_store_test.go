package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

func seedToken(t *testing.T, store *TokenStore, mint string, status domain.Status, discoveredAt int64) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.Token{
		Mint:         mint,
		Status:       status,
		Bucket:       domain.BucketStandby,
		DiscoveredAt: discoveredAt,
	})
	require.NoError(t, err)
}

func TestTokenStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	token := &domain.Token{
		Mint:         "So11111111111111111111111111111111111111112",
		Status:       domain.StatusDiscovered,
		Bucket:       domain.BucketStandby,
		DiscoveredAt: 1700000000000,
		Intel: &domain.Intel{
			Symbol:       "TEST",
			LiquidityUsd: ptr(1500.0),
			Volume24hUsd: ptr(300.0),
			RiskLabel:    ptr("good"),
			Socials:      []string{"https://example.com"},
		},
	}

	require.NoError(t, store.Insert(ctx, token))

	got, err := store.Get(ctx, token.Mint)
	require.NoError(t, err)

	assert.Equal(t, token.Mint, got.Mint)
	assert.Equal(t, domain.StatusDiscovered, got.Status)
	assert.Equal(t, domain.BucketStandby, got.Bucket)
	assert.Equal(t, int64(1700000000000), got.DiscoveredAt)
	require.NotNil(t, got.Intel)
	assert.Equal(t, "TEST", got.Intel.Symbol)
	assert.Equal(t, 1500.0, *got.Intel.LiquidityUsd)
	assert.Equal(t, "good", *got.Intel.RiskLabel)
	assert.Nil(t, got.LastAnalyzedAt)
	assert.Nil(t, got.PoolCreatedAt)
}

func TestTokenStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	seedToken(t, store, "dup-mint", domain.StatusDiscovered, 100)

	err := store.Insert(context.Background(), &domain.Token{
		Mint:         "dup-mint",
		Status:       domain.StatusDiscovered,
		DiscoveredAt: 200,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTokenStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	exists, err := store.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTokenStore_ClaimDiscovered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	seedToken(t, store, "late", domain.StatusDiscovered, 300)
	seedToken(t, store, "early", domain.StatusDiscovered, 100)
	seedToken(t, store, "fresh", domain.StatusDiscovered, 900) // past the threshold
	seedToken(t, store, "done", domain.StatusAnalyzed, 50)     // wrong status

	claimed, err := store.ClaimDiscovered(ctx, 500, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "early", claimed[0].Mint)
	assert.Equal(t, "late", claimed[1].Mint)
	assert.Equal(t, domain.StatusAnalyzing, claimed[0].Status)

	// Claimed rows are no longer eligible.
	again, err := store.ClaimDiscovered(ctx, 500, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	got, err := store.Get(ctx, "early")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzing, got.Status)
}

func TestTokenStore_RequeueAnalyzing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	seedToken(t, store, "claimed-a", domain.StatusDiscovered, 100)
	seedToken(t, store, "claimed-b", domain.StatusDiscovered, 200)
	seedToken(t, store, "done", domain.StatusAnalyzed, 50)

	claimed, err := store.ClaimDiscovered(ctx, 500, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	// Simulate a crash between claim and analysis: the rows sit in
	// analyzing and a restarted claim finds nothing.
	again, err := store.ClaimDiscovered(ctx, 500, 10)
	require.NoError(t, err)
	require.Empty(t, again)

	requeued, err := store.RequeueAnalyzing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), requeued)

	recovered, err := store.ClaimDiscovered(ctx, 500, 10)
	require.NoError(t, err)
	require.Len(t, recovered, 2)
	assert.Equal(t, "claimed-a", recovered[0].Mint)

	got, err := store.Get(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, got.Status)
}

func TestTokenStore_ClaimDiscoveredConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		seedToken(t, store, fmt.Sprintf("mint-%02d", i), domain.StatusDiscovered, int64(i))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				claimed, err := store.ClaimDiscovered(ctx, 1000, 5)
				if err != nil {
					t.Errorf("ClaimDiscovered: %v", err)
					return
				}
				if len(claimed) == 0 {
					return
				}
				mu.Lock()
				for _, c := range claimed {
					seen[c.Mint]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 40)
	for mint, n := range seen {
		assert.Equalf(t, 1, n, "%s claimed more than once", mint)
	}
}

func TestTokenStore_ApplyAnalysis(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	seedToken(t, store, "mint-a", domain.StatusAnalyzing, 100)

	err := store.ApplyAnalysis(ctx, "mint-a", storage.AnalysisUpdate{
		Status:        domain.StatusAnalyzed,
		Bucket:        domain.BucketHatching,
		Priority:      60,
		FinalScore:    78.5,
		SafetyScore:   80,
		MarketScore:   75,
		Intel:         &domain.Intel{LiquidityUsd: ptr(500.0)},
		PoolCreatedAt: ptr(int64(90)),
		AnalyzedAt:    5000,
		SnapshotAt:    5000,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "mint-a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, got.Status)
	assert.Equal(t, domain.BucketHatching, got.Bucket)
	assert.Equal(t, 78.5, got.FinalScore)
	require.NotNil(t, got.PoolCreatedAt)
	assert.Equal(t, int64(90), *got.PoolCreatedAt)
	require.NotNil(t, got.LastSnapshotAt)
	assert.Equal(t, int64(5000), *got.LastSnapshotAt)

	// Nil pool time and zero snapshot time must keep prior values.
	err = store.ApplyAnalysis(ctx, "mint-a", storage.AnalysisUpdate{
		Status:     domain.StatusAnalyzed,
		Bucket:     domain.BucketHatching,
		AnalyzedAt: 9000,
	})
	require.NoError(t, err)

	got, err = store.Get(ctx, "mint-a")
	require.NoError(t, err)
	assert.Equal(t, int64(9000), *got.LastAnalyzedAt)
	assert.Equal(t, int64(90), *got.PoolCreatedAt)
	assert.Equal(t, int64(5000), *got.LastSnapshotAt)

	err = store.ApplyAnalysis(ctx, "missing", storage.AnalysisUpdate{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_MarkServed(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	seedToken(t, store, "a", domain.StatusAnalyzed, 100)
	seedToken(t, store, "b", domain.StatusRejected, 100)

	require.NoError(t, store.MarkServed(ctx, []string{"a", "b", "missing"}, 7000))

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusServed, a.Status)
	require.NotNil(t, a.LastServedAt)
	assert.Equal(t, int64(7000), *a.LastServedAt)

	b, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, b.Status, "rejected tokens must not be promoted")
}

func TestTokenStore_ListStaleByBucket(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	analyze := func(mint string, bucket domain.Bucket, analyzedAt int64) {
		seedToken(t, store, mint, domain.StatusAnalyzing, 10)
		require.NoError(t, store.ApplyAnalysis(ctx, mint, storage.AnalysisUpdate{
			Status:     domain.StatusAnalyzed,
			Bucket:     bucket,
			AnalyzedAt: analyzedAt,
		}))
	}

	analyze("stale-2", domain.BucketFresh, 200)
	analyze("stale-1", domain.BucketFresh, 100)
	analyze("recent", domain.BucketFresh, 900)
	analyze("other", domain.BucketTop, 100)

	got, err := store.ListStaleByBucket(ctx, domain.BucketFresh, 500, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "stale-1", got[0].Mint)
	assert.Equal(t, "stale-2", got[1].Mint)
}

func TestTokenStore_ListServableByBucket(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	analyze := func(mint string, status domain.Status, score float64) {
		seedToken(t, store, mint, domain.StatusAnalyzing, 10)
		require.NoError(t, store.ApplyAnalysis(ctx, mint, storage.AnalysisUpdate{
			Status:     status,
			Bucket:     domain.BucketHatching,
			FinalScore: score,
			AnalyzedAt: 100,
		}))
	}

	analyze("low", domain.StatusAnalyzed, 40)
	analyze("high", domain.StatusAnalyzed, 90)
	analyze("served", domain.StatusServed, 70)
	analyze("rejected", domain.StatusRejected, 99)

	got, err := store.ListServableByBucket(ctx, domain.BucketHatching, 50, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].Mint)
	assert.Equal(t, "served", got[1].Mint)
}

func TestTokenStore_ListByVolumeNullsLast(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	analyze := func(mint string, volume *float64) {
		seedToken(t, store, mint, domain.StatusAnalyzing, 10)
		require.NoError(t, store.ApplyAnalysis(ctx, mint, storage.AnalysisUpdate{
			Status:     domain.StatusAnalyzed,
			Bucket:     domain.BucketStandby,
			Intel:      &domain.Intel{Volume24hUsd: volume},
			AnalyzedAt: 100,
		}))
	}

	analyze("no-volume", nil)
	analyze("low", ptr(100.0))
	analyze("high", ptr(9000.0))

	got, err := store.ListByVolume(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "high", got[0].Mint)
	assert.Equal(t, "low", got[1].Mint)
	assert.Equal(t, "no-volume", got[2].Mint)
}

func TestTokenStore_Counts(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	seedToken(t, store, "d1", domain.StatusDiscovered, 10)
	seedToken(t, store, "d2", domain.StatusDiscovered, 10)
	seedToken(t, store, "a1", domain.StatusAnalyzing, 10)
	require.NoError(t, store.ApplyAnalysis(ctx, "a1", storage.AnalysisUpdate{
		Status:     domain.StatusAnalyzed,
		Bucket:     domain.BucketPriority,
		AnalyzedAt: 20,
	}))

	byStatus, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), byStatus[domain.StatusDiscovered])
	assert.Equal(t, int64(1), byStatus[domain.StatusAnalyzed])

	byBucket, err := store.CountByBucket(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), byBucket[domain.BucketPriority])
	assert.NotContains(t, byBucket, domain.BucketStandby, "only analyzed/served rows count")
}

func TestTokenStore_DeleteRejectedBefore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	seedToken(t, store, "old-reject", domain.StatusRejected, 100)
	seedToken(t, store, "new-reject", domain.StatusRejected, 900)
	seedToken(t, store, "old-keeper", domain.StatusAnalyzed, 100)

	removed, err := store.DeleteRejectedBefore(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	exists, _ := store.Exists(ctx, "old-reject")
	assert.False(t, exists)
	exists, _ = store.Exists(ctx, "new-reject")
	assert.True(t, exists)
	exists, _ = store.Exists(ctx, "old-keeper")
	assert.True(t, exists)
}
