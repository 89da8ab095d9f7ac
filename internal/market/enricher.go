package market

import (
	"context"
	"errors"
	"log"
	"time"

	"solana-token-scout/internal/domain"
)

// SnapshotFetcher is the market-data side of enrichment, usually the
// failover chain over the aggregator clients.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, mint string) (*MarketSnapshot, error)
}

// Enricher composes a token's intel record from the market snapshot
// fetcher, the on-chain facts client, and the risk client. Intake and
// re-analysis share one instance.
type Enricher struct {
	snapshots SnapshotFetcher
	facts     *FactsClient
	risk      *RiskClient
	logger    *log.Logger
	now       func() time.Time
}

func NewEnricher(snapshots SnapshotFetcher, facts *FactsClient, risk *RiskClient, logger *log.Logger) *Enricher {
	if logger == nil {
		logger = log.New(log.Writer(), "[enrich] ", log.LstdFlags)
	}
	return &Enricher{
		snapshots: snapshots,
		facts:     facts,
		risk:      risk,
		logger:    logger,
		now:       time.Now,
	}
}

// Enrich builds the intel record for a mint. ErrNoData means no provider
// knows the token and the caller should reject it; any other error is
// transient and the caller should retry later. discoveredAt anchors the
// age estimate when no pool creation time is known.
func (e *Enricher) Enrich(ctx context.Context, mint string, discoveredAt int64) (*domain.Intel, error) {
	snap, err := e.snapshots.FetchSnapshot(ctx, mint)
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, err
	}

	var facts *AssetFacts
	if e.facts != nil {
		facts, err = e.facts.Fetch(ctx, mint)
		if err != nil && !errors.Is(err, ErrNoData) && !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
	}

	// Nothing anywhere knows this mint: definitive, not transient.
	if snap == nil && facts == nil {
		return nil, ErrNoData
	}

	intel := &domain.Intel{}
	if snap != nil {
		intel.Symbol = snap.Symbol
		intel.Name = snap.Name
		intel.PriceUsd = snap.PriceUsd
		intel.LiquidityUsd = snap.LiquidityUsd
		intel.Volume24hUsd = snap.Volume24hUsd
		intel.MarketCapUsd = snap.MarketCapUsd
		intel.PriceChange24h = snap.PriceChange24h
		intel.PairAddress = snap.PairAddress
		intel.PairCreatedAt = snap.PairCreatedAt
		intel.Socials = snap.Socials
		if snap.Followers != nil {
			v := float64(*snap.Followers)
			intel.Followers = &v
		}
	}

	if facts != nil {
		if intel.Symbol == "" {
			intel.Symbol = facts.Symbol
		}
		if intel.Name == "" {
			intel.Name = facts.Name
		}
		intel.MintAuthority = facts.MintAuthority
		intel.FreezeAuthority = facts.FreezeAuthority
		intel.CreatorAddress = facts.CreatorAddress
		if facts.CreatorMints != nil {
			v := int(*facts.CreatorMints)
			intel.CreatorMints = &v
		}
		if facts.TopHolderPct != nil {
			intel.TopHolderPct = facts.TopHolderPct
		}
		if len(intel.Socials) == 0 {
			intel.Socials = facts.Socials
		}
	}

	if e.risk != nil {
		report, err := e.risk.FetchReport(ctx, mint)
		if err != nil {
			e.logger.Printf("risk report for %s: %v", mint, err)
		} else if report != nil {
			label := report.Label
			intel.RiskLabel = &label
			if intel.TopHolderPct == nil && report.TopHolderPct != nil {
				intel.TopHolderPct = report.TopHolderPct
			}
		}
	}

	intel.AgeMinutes = e.ageMinutes(intel.PairCreatedAt, discoveredAt)
	return intel, nil
}

func (e *Enricher) ageMinutes(pairCreatedAt *int64, discoveredAt int64) *float64 {
	nowMs := e.now().UnixMilli()
	anchor := discoveredAt
	if pairCreatedAt != nil && *pairCreatedAt > 0 {
		anchor = *pairCreatedAt
	}
	if anchor <= 0 || anchor > nowMs {
		return nil
	}
	age := float64(nowMs-anchor) / 60000.0
	return &age
}
