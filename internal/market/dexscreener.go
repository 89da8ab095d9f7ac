package market

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	dexScreenerBaseURL  = "https://api.dexscreener.com"
	providerDexScreener = "dexscreener"
)

// DexScreenerClient reads token pairs and discovery feeds from DexScreener.
type DexScreenerClient struct {
	baseURL string
	client  *http.Client
	gate    *Gate
}

func NewDexScreenerClient(gate *Gate, opts ...func(*DexScreenerClient)) *DexScreenerClient {
	c := &DexScreenerClient{
		baseURL: dexScreenerBaseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		gate:    gate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithDexScreenerBaseURL(url string) func(*DexScreenerClient) {
	return func(c *DexScreenerClient) { c.baseURL = url }
}

func (c *DexScreenerClient) Name() string { return providerDexScreener }

type dexScreenerPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd  string `json:"priceUsd"`
	Liquidity *struct {
		Usd float64 `json:"usd"`
	} `json:"liquidity"`
	Volume *struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange *struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	MarketCap     *float64 `json:"marketCap"`
	FDV           *float64 `json:"fdv"`
	PairCreatedAt *int64   `json:"pairCreatedAt"`
	Info          *struct {
		Socials []struct {
			URL string `json:"url"`
		} `json:"socials"`
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
	} `json:"info"`
}

// FetchSnapshot returns the snapshot built from the token's deepest pair.
func (c *DexScreenerClient) FetchSnapshot(ctx context.Context, mint string) (*MarketSnapshot, error) {
	var pairs []dexScreenerPair
	err := c.gate.Do(ctx, providerDexScreener, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, mint)
		var resp struct {
			Pairs []dexScreenerPair `json:"pairs"`
		}
		if err := getJSON(ctx, c.client, url, nil, &resp); err != nil {
			return err
		}
		pairs = resp.Pairs
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, ErrNoData
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if liqUsd(&p) > liqUsd(&best) {
			best = p
		}
	}
	return pairToSnapshot(&best), nil
}

func liqUsd(p *dexScreenerPair) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.Usd
}

func pairToSnapshot(p *dexScreenerPair) *MarketSnapshot {
	snap := &MarketSnapshot{
		Symbol:        p.BaseToken.Symbol,
		Name:          p.BaseToken.Name,
		PairAddress:   p.PairAddress,
		PairCreatedAt: p.PairCreatedAt,
	}
	if price := parseFloat(p.PriceUsd); price != nil {
		snap.PriceUsd = price
	}
	if p.Liquidity != nil {
		v := p.Liquidity.Usd
		snap.LiquidityUsd = &v
	}
	if p.Volume != nil {
		v := p.Volume.H24
		snap.Volume24hUsd = &v
	}
	if p.PriceChange != nil {
		v := p.PriceChange.H24
		snap.PriceChange24h = &v
	}
	switch {
	case p.MarketCap != nil:
		snap.MarketCapUsd = p.MarketCap
	case p.FDV != nil:
		snap.MarketCapUsd = p.FDV
	}
	if p.Info != nil {
		for _, s := range p.Info.Socials {
			if s.URL != "" {
				snap.Socials = append(snap.Socials, s.URL)
			}
		}
		for _, w := range p.Info.Websites {
			if w.URL != "" {
				snap.Socials = append(snap.Socials, w.URL)
			}
		}
	}
	return snap
}

// ProfileCandidate is a mint surfaced by a DexScreener discovery feed.
type ProfileCandidate struct {
	Mint   string
	SeenAt int64
}

// LatestProfiles returns mints from the token-profiles feed, Solana only.
func (c *DexScreenerClient) LatestProfiles(ctx context.Context) ([]ProfileCandidate, error) {
	return c.fetchFeed(ctx, "/token-profiles/latest/v1")
}

// LatestBoosts returns mints from the token-boosts feed, Solana only.
func (c *DexScreenerClient) LatestBoosts(ctx context.Context) ([]ProfileCandidate, error) {
	return c.fetchFeed(ctx, "/token-boosts/latest/v1")
}

func (c *DexScreenerClient) fetchFeed(ctx context.Context, path string) ([]ProfileCandidate, error) {
	var entries []struct {
		ChainID      string `json:"chainId"`
		TokenAddress string `json:"tokenAddress"`
	}
	err := c.gate.Do(ctx, providerDexScreener, func(ctx context.Context) error {
		return getJSON(ctx, c.client, c.baseURL+path, nil, &entries)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	out := make([]ProfileCandidate, 0, len(entries))
	for _, e := range entries {
		if e.ChainID != "solana" || e.TokenAddress == "" {
			continue
		}
		out = append(out, ProfileCandidate{Mint: e.TokenAddress, SeenAt: now})
	}
	return out, nil
}
