package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-token-scout/internal/health"
	"solana-token-scout/internal/ratelimit"
	"solana-token-scout/internal/solana"
	"solana-token-scout/internal/solana/stub"
)

func testGate() *Gate {
	limiter := ratelimit.NewLimiter(nil, ratelimit.Rate{Capacity: 1000, Refill: 1000, Interval: time.Second})
	return NewGate(limiter, health.NewRegistry(health.DefaultConfig(), nil))
}

type fetcherFunc func(ctx context.Context, mint string) (*MarketSnapshot, error)

func (f fetcherFunc) FetchSnapshot(ctx context.Context, mint string) (*MarketSnapshot, error) {
	return f(ctx, mint)
}

func TestEnrichComposesSnapshotAndFacts(t *testing.T) {
	createdAt := time.Now().Add(-30 * time.Minute).UnixMilli()
	snapshots := fetcherFunc(func(_ context.Context, _ string) (*MarketSnapshot, error) {
		return &MarketSnapshot{
			Symbol:        "TKN",
			LiquidityUsd:  f64(5000),
			Volume24hUsd:  f64(1200),
			PairCreatedAt: &createdAt,
		}, nil
	})

	rpc := stub.NewRPCClient()
	mintAuth := "AuthAddr111"
	rpc.Assets["mint1"] = &solana.AssetInfo{
		Mint:          "mint1",
		Name:          "Token One",
		MintAuthority: &mintAuth,
		Creator:       "creator1",
	}
	rpc.CreatorCounts["creator1"] = 7
	rpc.Holders["mint1"] = []solana.TokenBalance{{Amount: 30}, {Amount: 20}}
	rpc.Supplies["mint1"] = &solana.TokenBalance{Amount: 100}

	gate := testGate()
	enricher := NewEnricher(snapshots, NewFactsClient(rpc, gate), nil, nil)

	intel, err := enricher.Enrich(context.Background(), "mint1", time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	if intel.Symbol != "TKN" {
		t.Errorf("symbol = %q, want TKN", intel.Symbol)
	}
	if intel.Name != "Token One" {
		t.Errorf("name = %q, want fallback from asset facts", intel.Name)
	}
	if intel.MintAuthority == nil || *intel.MintAuthority != mintAuth {
		t.Errorf("mint authority not carried over: %v", intel.MintAuthority)
	}
	if intel.CreatorMints == nil || *intel.CreatorMints != 7 {
		t.Errorf("creator mints = %v, want 7", intel.CreatorMints)
	}
	if intel.TopHolderPct == nil || *intel.TopHolderPct != 50 {
		t.Errorf("top holder pct = %v, want 50", intel.TopHolderPct)
	}
	if intel.AgeMinutes == nil || *intel.AgeMinutes < 29 || *intel.AgeMinutes > 31 {
		t.Errorf("age minutes = %v, want ~30 from pair creation time", intel.AgeMinutes)
	}
}

func TestEnrichNoDataAnywhereIsDefinitive(t *testing.T) {
	snapshots := fetcherFunc(func(_ context.Context, _ string) (*MarketSnapshot, error) {
		return nil, ErrNoData
	})
	enricher := NewEnricher(snapshots, NewFactsClient(stub.NewRPCClient(), testGate()), nil, nil)

	_, err := enricher.Enrich(context.Background(), "ghost", time.Now().UnixMilli())
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestEnrichTransientFailurePropagates(t *testing.T) {
	snapshots := fetcherFunc(func(_ context.Context, _ string) (*MarketSnapshot, error) {
		return nil, ErrUnavailable
	})
	enricher := NewEnricher(snapshots, nil, nil, nil)

	_, err := enricher.Enrich(context.Background(), "mint1", time.Now().UnixMilli())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected transient error to propagate, got %v", err)
	}
}

func TestEnrichAgeFallsBackToDiscovery(t *testing.T) {
	snapshots := fetcherFunc(func(_ context.Context, _ string) (*MarketSnapshot, error) {
		return &MarketSnapshot{Symbol: "X"}, nil
	})
	enricher := NewEnricher(snapshots, nil, nil, nil)

	discoveredAt := time.Now().Add(-10 * time.Minute).UnixMilli()
	intel, err := enricher.Enrich(context.Background(), "mint1", discoveredAt)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if intel.AgeMinutes == nil || *intel.AgeMinutes < 9 || *intel.AgeMinutes > 11 {
		t.Errorf("age minutes = %v, want ~10 from discovery time", intel.AgeMinutes)
	}
}
