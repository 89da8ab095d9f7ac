package market

import (
	"context"
	"net/http"
	"time"
)

const (
	jupiterBaseURL  = "https://lite-api.jup.ag"
	providerJupiter = "jupiter"
)

// JupiterClient reads the recently-listed tokens feed from Jupiter.
type JupiterClient struct {
	baseURL string
	client  *http.Client
	gate    *Gate
}

func NewJupiterClient(gate *Gate, opts ...func(*JupiterClient)) *JupiterClient {
	c := &JupiterClient{
		baseURL: jupiterBaseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		gate:    gate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithJupiterBaseURL(url string) func(*JupiterClient) {
	return func(c *JupiterClient) { c.baseURL = url }
}

func (c *JupiterClient) Name() string { return providerJupiter }

// RecentTokens returns mints Jupiter has recently indexed.
func (c *JupiterClient) RecentTokens(ctx context.Context) ([]ProfileCandidate, error) {
	var entries []struct {
		ID string `json:"id"`
	}
	err := c.gate.Do(ctx, providerJupiter, func(ctx context.Context) error {
		return getJSON(ctx, c.client, c.baseURL+"/tokens/v2/recent", nil, &entries)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	out := make([]ProfileCandidate, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		out = append(out, ProfileCandidate{Mint: e.ID, SeenAt: now})
	}
	return out, nil
}
