package market

import (
	"context"
	"fmt"

	"solana-token-scout/internal/solana"
)

const providerHelius = "helius"

// AssetFacts are the on-chain facts about a mint that never come from
// market aggregators: authorities, creator history, holder concentration.
type AssetFacts struct {
	Symbol          string
	Name            string
	MintAuthority   *string
	FreezeAuthority *string
	CreatorAddress  string
	CreatorMints    *int64
	TopHolderPct    *float64
	Socials         []string
}

// FactsClient reads on-chain asset facts through the RPC provider.
type FactsClient struct {
	rpc  solana.RPCClient
	gate *Gate
}

func NewFactsClient(rpc solana.RPCClient, gate *Gate) *FactsClient {
	return &FactsClient{rpc: rpc, gate: gate}
}

// Fetch assembles asset facts for a mint. The asset lookup is required;
// holder concentration and creator history are best-effort extras.
func (c *FactsClient) Fetch(ctx context.Context, mint string) (*AssetFacts, error) {
	var asset *solana.AssetInfo
	err := c.gate.Do(ctx, providerHelius, func(ctx context.Context) error {
		a, err := c.rpc.GetAsset(ctx, mint)
		if err != nil {
			return err
		}
		asset = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	if asset == nil {
		return nil, ErrNoData
	}

	facts := &AssetFacts{
		Symbol:          asset.Symbol,
		Name:            asset.Name,
		MintAuthority:   asset.MintAuthority,
		FreezeAuthority: asset.FreezeAuthority,
		CreatorAddress:  asset.Creator,
		Socials:         asset.Socials,
	}

	if pct, err := c.topHolderPct(ctx, mint); err == nil && pct != nil {
		facts.TopHolderPct = pct
	}

	if asset.Creator != "" {
		_ = c.gate.Do(ctx, providerHelius, func(ctx context.Context) error {
			count, err := c.rpc.GetAssetCountByCreator(ctx, asset.Creator)
			if err != nil {
				return err
			}
			n := int64(count)
			facts.CreatorMints = &n
			return nil
		})
	}

	return facts, nil
}

// topHolderPct sums the top ten holder balances as a share of total supply.
func (c *FactsClient) topHolderPct(ctx context.Context, mint string) (*float64, error) {
	var (
		holders []solana.TokenBalance
		supply  *solana.TokenBalance
	)
	err := c.gate.Do(ctx, providerHelius, func(ctx context.Context) error {
		h, err := c.rpc.GetTokenLargestAccounts(ctx, mint)
		if err != nil {
			return err
		}
		s, err := c.rpc.GetTokenSupply(ctx, mint)
		if err != nil {
			return err
		}
		holders, supply = h, s
		return nil
	})
	if err != nil {
		return nil, err
	}
	if supply == nil || supply.Amount <= 0 || len(holders) == 0 {
		return nil, nil
	}

	var top float64
	for i, h := range holders {
		if i >= 10 {
			break
		}
		top += h.Amount
	}
	pct := top / supply.Amount * 100
	if pct > 100 {
		pct = 100
	}
	return &pct, nil
}
