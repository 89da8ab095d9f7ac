package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/market"
	"solana-token-scout/internal/scoring"
	"solana-token-scout/internal/storage/memory"
)

type enricherFunc func(ctx context.Context, mint string, discoveredAt int64) (*domain.Intel, error)

func (f enricherFunc) Enrich(ctx context.Context, mint string, discoveredAt int64) (*domain.Intel, error) {
	return f(ctx, mint, discoveredAt)
}

func f64(v float64) *float64 { return &v }

func seed(t *testing.T, store *memory.TokenStore, mint string, ageOfDiscovery time.Duration) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.Token{
		Mint:         mint,
		Status:       domain.StatusDiscovered,
		Bucket:       domain.BucketStandby,
		DiscoveredAt: time.Now().Add(-ageOfDiscovery).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", mint, err)
	}
}

func newTestWorker(tokens *memory.TokenStore, snapshots *memory.SnapshotStore, enrich enricherFunc) *Worker {
	return NewWorker(tokens, snapshots, nil, enrich, scoring.DefaultConfig(), nil, nil)
}

func TestCyclePromotesEnrichedToken(t *testing.T) {
	tokens := memory.NewTokenStore()
	snapshots := memory.NewSnapshotStore()
	seed(t, tokens, "mint1", time.Minute)

	age := 10.0
	worker := newTestWorker(tokens, snapshots, func(_ context.Context, _ string, _ int64) (*domain.Intel, error) {
		return &domain.Intel{
			LiquidityUsd: f64(5000),
			Volume24hUsd: f64(2000),
			AgeMinutes:   &age,
		}, nil
	})
	worker.Cycle(context.Background())

	token, err := tokens.Get(context.Background(), "mint1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if token.Status != domain.StatusAnalyzed {
		t.Errorf("status = %q, want analyzed", token.Status)
	}
	if token.Bucket == domain.BucketStandby && token.FinalScore == 0 {
		t.Error("analysis result was not persisted")
	}
	if token.LastAnalyzedAt == nil {
		t.Error("analysis time was not stamped")
	}

	snap, err := snapshots.Latest(context.Background(), "mint1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if snap.LiquidityUsd != 5000 {
		t.Errorf("snapshot liquidity = %v, want 5000", snap.LiquidityUsd)
	}
}

func TestCycleRejectsUnknownToken(t *testing.T) {
	tokens := memory.NewTokenStore()
	seed(t, tokens, "ghost", time.Minute)

	worker := newTestWorker(tokens, memory.NewSnapshotStore(), func(_ context.Context, _ string, _ int64) (*domain.Intel, error) {
		return nil, market.ErrNoData
	})
	worker.Cycle(context.Background())

	token, _ := tokens.Get(context.Background(), "ghost")
	if token.Status != domain.StatusRejected {
		t.Errorf("status = %q, want rejected on definitive no-data", token.Status)
	}
}

func TestCycleReleasesClaimOnTransientFailure(t *testing.T) {
	tokens := memory.NewTokenStore()
	seed(t, tokens, "mint1", time.Minute)

	worker := newTestWorker(tokens, memory.NewSnapshotStore(), func(_ context.Context, _ string, _ int64) (*domain.Intel, error) {
		return nil, errors.New("provider timeout")
	})
	worker.Cycle(context.Background())

	token, _ := tokens.Get(context.Background(), "mint1")
	if token.Status != domain.StatusDiscovered {
		t.Errorf("status = %q, want discovered again after transient failure", token.Status)
	}
}

func TestCycleHonorsGracePeriod(t *testing.T) {
	tokens := memory.NewTokenStore()
	seed(t, tokens, "tooNew", time.Second) // discovered one second ago

	called := false
	worker := newTestWorker(tokens, memory.NewSnapshotStore(), func(_ context.Context, _ string, _ int64) (*domain.Intel, error) {
		called = true
		return &domain.Intel{}, nil
	})
	worker.Cycle(context.Background())

	if called {
		t.Error("token inside the indexing grace period was enriched")
	}
	token, _ := tokens.Get(context.Background(), "tooNew")
	if token.Status != domain.StatusDiscovered {
		t.Errorf("status = %q, want untouched discovered", token.Status)
	}
}
