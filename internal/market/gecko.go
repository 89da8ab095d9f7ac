package market

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	geckoBaseURL  = "https://api.geckoterminal.com/api/v2"
	providerGecko = "geckoterminal"
)

// GeckoClient reads token data and the new-pools feed from GeckoTerminal.
type GeckoClient struct {
	baseURL string
	client  *http.Client
	gate    *Gate
}

func NewGeckoClient(gate *Gate, opts ...func(*GeckoClient)) *GeckoClient {
	c := &GeckoClient{
		baseURL: geckoBaseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		gate:    gate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithGeckoBaseURL(url string) func(*GeckoClient) {
	return func(c *GeckoClient) { c.baseURL = url }
}

func (c *GeckoClient) Name() string { return providerGecko }

func (c *GeckoClient) FetchSnapshot(ctx context.Context, mint string) (*MarketSnapshot, error) {
	var resp struct {
		Data *struct {
			Attributes struct {
				Symbol            string `json:"symbol"`
				Name              string `json:"name"`
				PriceUsd          string `json:"price_usd"`
				TotalReserveInUsd string `json:"total_reserve_in_usd"`
				MarketCapUsd      string `json:"market_cap_usd"`
				FdvUsd            string `json:"fdv_usd"`
				VolumeUsd         struct {
					H24 string `json:"h24"`
				} `json:"volume_usd"`
			} `json:"attributes"`
		} `json:"data"`
	}

	err := c.gate.Do(ctx, providerGecko, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/networks/solana/tokens/%s", c.baseURL, mint)
		return getJSON(ctx, c.client, url, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, ErrNoData
	}

	attrs := resp.Data.Attributes
	snap := &MarketSnapshot{
		Symbol:       attrs.Symbol,
		Name:         attrs.Name,
		PriceUsd:     parseFloat(attrs.PriceUsd),
		LiquidityUsd: parseFloat(attrs.TotalReserveInUsd),
		Volume24hUsd: parseFloat(attrs.VolumeUsd.H24),
	}
	switch {
	case attrs.MarketCapUsd != "":
		snap.MarketCapUsd = parseFloat(attrs.MarketCapUsd)
	case attrs.FdvUsd != "":
		snap.MarketCapUsd = parseFloat(attrs.FdvUsd)
	}
	return snap, nil
}

// NewPools returns base-token mints from the Solana new-pools feed.
func (c *GeckoClient) NewPools(ctx context.Context) ([]ProfileCandidate, error) {
	var resp struct {
		Data []struct {
			Relationships struct {
				BaseToken struct {
					Data struct {
						ID string `json:"id"`
					} `json:"data"`
				} `json:"base_token"`
			} `json:"relationships"`
		} `json:"data"`
	}

	err := c.gate.Do(ctx, providerGecko, func(ctx context.Context) error {
		return getJSON(ctx, c.client, c.baseURL+"/networks/solana/new_pools", nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	out := make([]ProfileCandidate, 0, len(resp.Data))
	for _, d := range resp.Data {
		// Token ids arrive as "solana_<mint>".
		id := d.Relationships.BaseToken.Data.ID
		mint, ok := strings.CutPrefix(id, "solana_")
		if !ok || mint == "" {
			continue
		}
		out = append(out, ProfileCandidate{Mint: mint, SeenAt: now})
	}
	return out, nil
}
