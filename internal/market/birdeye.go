package market

import (
	"context"
	"fmt"
	"net/http"
)

const (
	birdeyeBaseURL  = "https://public-api.birdeye.so"
	providerBirdeye = "birdeye"
)

// BirdeyeClient reads token overviews from the Birdeye public API.
type BirdeyeClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	gate    *Gate
}

func NewBirdeyeClient(apiKey string, gate *Gate, opts ...func(*BirdeyeClient)) *BirdeyeClient {
	c := &BirdeyeClient{
		baseURL: birdeyeBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		gate:    gate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithBirdeyeBaseURL(url string) func(*BirdeyeClient) {
	return func(c *BirdeyeClient) { c.baseURL = url }
}

func (c *BirdeyeClient) Name() string { return providerBirdeye }

func (c *BirdeyeClient) FetchSnapshot(ctx context.Context, mint string) (*MarketSnapshot, error) {
	if c.apiKey == "" {
		return nil, ErrNoData
	}

	var resp struct {
		Success bool `json:"success"`
		Data    *struct {
			Symbol        string   `json:"symbol"`
			Name          string   `json:"name"`
			Price         *float64 `json:"price"`
			Liquidity     *float64 `json:"liquidity"`
			V24hUSD       *float64 `json:"v24hUSD"`
			MC            *float64 `json:"mc"`
			PriceChange24 *float64 `json:"priceChange24hPercent"`
			Extensions    *struct {
				Website  string `json:"website"`
				Twitter  string `json:"twitter"`
				Telegram string `json:"telegram"`
			} `json:"extensions"`
		} `json:"data"`
	}

	err := c.gate.Do(ctx, providerBirdeye, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/defi/token_overview?address=%s", c.baseURL, mint)
		headers := map[string]string{
			"X-API-KEY": c.apiKey,
			"x-chain":   "solana",
		}
		return getJSON(ctx, c.client, url, headers, &resp)
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, ErrNoData
	}

	d := resp.Data
	snap := &MarketSnapshot{
		Symbol:         d.Symbol,
		Name:           d.Name,
		PriceUsd:       d.Price,
		LiquidityUsd:   d.Liquidity,
		Volume24hUsd:   d.V24hUSD,
		MarketCapUsd:   d.MC,
		PriceChange24h: d.PriceChange24,
	}
	if d.Extensions != nil {
		for _, u := range []string{d.Extensions.Website, d.Extensions.Twitter, d.Extensions.Telegram} {
			if u != "" {
				snap.Socials = append(snap.Socials, u)
			}
		}
	}
	return snap, nil
}
