package ingest

import (
	"context"
	"fmt"
	"log"

	"solana-token-scout/internal/cache"
	"solana-token-scout/internal/market"
	"solana-token-scout/internal/solana"
)

const recentSignatureCapacity = 8000

// RPCProvider is one named transaction source in the failover chain.
type RPCProvider struct {
	Name   string
	Client solana.RPCClient
}

// Resolver turns transaction signatures into candidate mint addresses.
// Providers are tried in order; a provider that errors or returns nothing
// hands over to the next. Resolved signatures are remembered so repeat
// notifications do not trigger repeat lookups.
type Resolver struct {
	providers []RPCProvider
	gate      *market.Gate
	seen      *cache.RecentSet
	logger    *log.Logger
}

func NewResolver(gate *market.Gate, logger *log.Logger, providers ...RPCProvider) *Resolver {
	if logger == nil {
		logger = log.New(log.Writer(), "[resolve] ", log.LstdFlags)
	}
	return &Resolver{
		providers: providers,
		gate:      gate,
		seen:      cache.NewRecentSet(recentSignatureCapacity),
		logger:    logger,
	}
}

// Resolve fetches the transaction behind a signature and extracts mint
// candidates from its account keys. Already-seen signatures return nil.
func (r *Resolver) Resolve(ctx context.Context, signature string) ([]string, error) {
	if signature == "" || !r.seen.Add(signature) {
		return nil, nil
	}

	tx, err := r.fetchTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	if tx == nil || tx.Message == nil {
		return nil, nil
	}

	var mints []string
	for _, key := range tx.Message.AccountKeys {
		if mint, ok := SanitizeMint(key); ok {
			mints = append(mints, mint)
		}
	}
	return mints, nil
}

func (r *Resolver) fetchTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var lastErr error
	for _, p := range r.providers {
		var tx *solana.Transaction
		err := r.gate.Do(ctx, p.Name, func(ctx context.Context) error {
			t, err := p.Client.GetTransaction(ctx, signature)
			if err != nil {
				return err
			}
			tx = t
			return nil
		})
		if err == nil && tx != nil {
			return tx, nil
		}
		if err != nil {
			lastErr = err
			r.logger.Printf("provider %s lookup %s: %v", p.Name, signature, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all providers failed for %s: %w", signature, lastErr)
	}
	return nil, nil
}
