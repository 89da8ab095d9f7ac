package market

import (
	"context"
	"errors"
	"log"
)

// MarketSnapshot is one provider's view of a token's market state.
// Pointer fields distinguish "absent" from zero.
type MarketSnapshot struct {
	Symbol         string
	Name           string
	PriceUsd       *float64
	LiquidityUsd   *float64
	Volume24hUsd   *float64
	MarketCapUsd   *float64
	PriceChange24h *float64
	PairAddress    string
	PairCreatedAt  *int64
	Socials        []string
	Followers      *int64
}

// Merge fills empty fields of s from other, never overwriting present data.
func (s *MarketSnapshot) Merge(other *MarketSnapshot) {
	if other == nil {
		return
	}
	if s.Symbol == "" {
		s.Symbol = other.Symbol
	}
	if s.Name == "" {
		s.Name = other.Name
	}
	if s.PriceUsd == nil {
		s.PriceUsd = other.PriceUsd
	}
	if s.LiquidityUsd == nil {
		s.LiquidityUsd = other.LiquidityUsd
	}
	if s.Volume24hUsd == nil {
		s.Volume24hUsd = other.Volume24hUsd
	}
	if s.MarketCapUsd == nil {
		s.MarketCapUsd = other.MarketCapUsd
	}
	if s.PriceChange24h == nil {
		s.PriceChange24h = other.PriceChange24h
	}
	if s.PairAddress == "" {
		s.PairAddress = other.PairAddress
	}
	if s.PairCreatedAt == nil {
		s.PairCreatedAt = other.PairCreatedAt
	}
	if len(s.Socials) == 0 {
		s.Socials = other.Socials
	}
	if s.Followers == nil {
		s.Followers = other.Followers
	}
}

// SnapshotProvider fetches a market snapshot for a mint address.
type SnapshotProvider interface {
	Name() string
	FetchSnapshot(ctx context.Context, mint string) (*MarketSnapshot, error)
}

// FailoverFetcher walks an ordered provider chain until one returns data.
// A provider that definitively reports no data (ErrNoData) does not stop
// the chain; only when every provider comes back empty is ErrNoData
// returned. Transient failures from every provider yield ErrUnavailable.
type FailoverFetcher struct {
	providers []SnapshotProvider
	logger    *log.Logger
}

func NewFailoverFetcher(logger *log.Logger, providers ...SnapshotProvider) *FailoverFetcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[market] ", log.LstdFlags)
	}
	return &FailoverFetcher{providers: providers, logger: logger}
}

func (f *FailoverFetcher) FetchSnapshot(ctx context.Context, mint string) (*MarketSnapshot, error) {
	var (
		sawNoData    bool
		sawTransient bool
	)
	for _, p := range f.providers {
		snap, err := p.FetchSnapshot(ctx, mint)
		if err == nil && snap != nil {
			return snap, nil
		}
		switch {
		case errors.Is(err, ErrNoData):
			sawNoData = true
		case errors.Is(err, ErrUnavailable):
			sawTransient = true
		case err != nil:
			sawTransient = true
			f.logger.Printf("provider %s failed for %s: %v", p.Name(), mint, err)
		default:
			sawNoData = true
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if sawNoData && !sawTransient {
		return nil, ErrNoData
	}
	return nil, ErrUnavailable
}
