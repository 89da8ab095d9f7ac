package reanalyze

import (
	"context"
	"errors"
	"log"
	"time"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/intake"
	"solana-token-scout/internal/market"
	"solana-token-scout/internal/storage"
)

const (
	secondChanceInterval = 10 * time.Minute
	secondChanceBatch    = 25
)

// SecondChance periodically re-checks rejected assets: one whose
// liquidity has since risen to the hatching floor goes back to
// discovered and re-enters intake.
type SecondChance struct {
	tokens       storage.TokenStore
	enricher     intake.Enricher
	liquidityMin float64
	logger       *log.Logger

	interval time.Duration
	batch    int
}

func NewSecondChance(tokens storage.TokenStore, enricher intake.Enricher, liquidityMin float64, logger *log.Logger) *SecondChance {
	if logger == nil {
		logger = log.New(log.Writer(), "[second-chance] ", log.LstdFlags)
	}
	return &SecondChance{
		tokens:       tokens,
		enricher:     enricher,
		liquidityMin: liquidityMin,
		logger:       logger,
		interval:     secondChanceInterval,
		batch:        secondChanceBatch,
	}
}

// Run sweeps until the context ends.
func (s *SecondChance) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep revives rejected assets whose fresh liquidity clears the floor.
func (s *SecondChance) Sweep(ctx context.Context) {
	rejected, err := s.tokens.ListByStatus(ctx, domain.StatusRejected, s.batch)
	if err != nil {
		s.logger.Printf("list rejected: %v", err)
		return
	}

	revived := 0
	for _, token := range rejected {
		if ctx.Err() != nil {
			return
		}
		intel, err := s.enricher.Enrich(ctx, token.Mint, token.DiscoveredAt)
		if err != nil {
			if !errors.Is(err, market.ErrNoData) {
				s.logger.Printf("recheck %s: %v", token.Mint, err)
			}
			continue
		}
		liq, ok := intel.Liquidity()
		if !ok || liq < s.liquidityMin {
			continue
		}
		if err := s.tokens.UpdateStatus(ctx, token.Mint, domain.StatusDiscovered); err != nil {
			s.logger.Printf("revive %s: %v", token.Mint, err)
			continue
		}
		revived++
	}
	if revived > 0 {
		s.logger.Printf("revived %d rejected assets", revived)
	}
}
