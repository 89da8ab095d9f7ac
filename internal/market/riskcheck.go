package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"solana-token-scout/internal/cache"
)

const (
	riskcheckBaseURL  = "https://api.rugcheck.xyz"
	providerRiskcheck = "riskcheck"

	riskCacheCapacity = 4096
	riskCacheTTL      = 30 * time.Minute
)

// RiskReport is a third-party risk assessment for a token.
type RiskReport struct {
	Label        string
	Score        float64
	TopHolderPct *float64
}

// RiskClient fetches rug-style risk summaries, cached to avoid
// re-querying the same mint within the cache TTL.
type RiskClient struct {
	baseURL string
	client  *http.Client
	gate    *Gate
	cache   *cache.TTL[*RiskReport]
}

func NewRiskClient(gate *Gate, opts ...func(*RiskClient)) *RiskClient {
	c := &RiskClient{
		baseURL: riskcheckBaseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		gate:    gate,
		cache:   cache.NewTTL[*RiskReport](riskCacheCapacity, riskCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithRiskBaseURL(url string) func(*RiskClient) {
	return func(c *RiskClient) { c.baseURL = url }
}

func (c *RiskClient) Name() string { return providerRiskcheck }

// FetchReport returns the cached or fresh risk summary for a mint.
// A missing report is not an error; it returns (nil, nil).
func (c *RiskClient) FetchReport(ctx context.Context, mint string) (*RiskReport, error) {
	if cached, ok := c.cache.Get(mint); ok {
		return cached, nil
	}

	var resp struct {
		Score float64 `json:"score"`
		Risks []struct {
			Name  string `json:"name"`
			Level string `json:"level"`
		} `json:"risks"`
		TopHolders []struct {
			Pct float64 `json:"pct"`
		} `json:"topHolders"`
	}

	err := c.gate.Do(ctx, providerRiskcheck, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/v1/tokens/%s/report/summary", c.baseURL, mint)
		return getJSON(ctx, c.client, url, nil, &resp)
	})
	if errors.Is(err, ErrNoData) {
		c.cache.Set(mint, nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	report := &RiskReport{
		Label: riskLabel(resp.Score),
		Score: resp.Score,
	}
	for _, r := range resp.Risks {
		if r.Level == "danger" {
			report.Label = "danger"
			break
		}
	}
	if len(resp.TopHolders) > 0 {
		var total float64
		for i, h := range resp.TopHolders {
			if i >= 10 {
				break
			}
			total += h.Pct
		}
		report.TopHolderPct = &total
	}

	c.cache.Set(mint, report)
	return report, nil
}

func riskLabel(score float64) string {
	switch {
	case score >= 5000:
		return "danger"
	case score >= 1000:
		return "warning"
	default:
		return "good"
	}
}
