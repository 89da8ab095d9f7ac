package domain

// Intel is the latest enrichment record for a token. Pointer fields
// distinguish "absent upstream" from a genuine zero; the confidence factor
// in scoring depends on that distinction. Persisted as JSONB.
type Intel struct {
	Symbol string `json:"symbol,omitempty"`
	Name   string `json:"name,omitempty"`

	PriceUsd       *float64 `json:"price_usd,omitempty"`
	LiquidityUsd   *float64 `json:"liquidity_usd,omitempty"`
	Volume24hUsd   *float64 `json:"volume_24h_usd,omitempty"`
	MarketCapUsd   *float64 `json:"market_cap_usd,omitempty"`
	PriceChange24h *float64 `json:"price_change_24h,omitempty"`

	PairAddress   string `json:"pair_address,omitempty"`
	PairCreatedAt *int64 `json:"pair_created_at,omitempty"` // ms

	MintAuthority   *string  `json:"mint_authority,omitempty"`
	FreezeAuthority *string  `json:"freeze_authority,omitempty"`
	TopHolderPct    *float64 `json:"top_holder_pct,omitempty"` // top-10 concentration, 0-100
	CreatorAddress  string   `json:"creator_address,omitempty"`
	CreatorMints    *int     `json:"creator_mints,omitempty"` // prior tokens by same creator

	RiskLabel *string  `json:"risk_label,omitempty"` // external audit label
	Socials   []string `json:"socials,omitempty"`
	Followers *float64 `json:"followers,omitempty"`

	AgeMinutes *float64 `json:"age_minutes,omitempty"` // computed at enrichment time
}

// HasActiveAuthority reports whether the mint or freeze authority is still set.
func (i *Intel) HasActiveAuthority() bool {
	return (i.MintAuthority != nil && *i.MintAuthority != "") ||
		(i.FreezeAuthority != nil && *i.FreezeAuthority != "")
}

// Liquidity returns the liquidity value and whether it was present.
func (i *Intel) Liquidity() (float64, bool) {
	if i.LiquidityUsd == nil {
		return 0, false
	}
	return *i.LiquidityUsd, true
}

// Volume returns the 24h volume and whether it was present.
func (i *Intel) Volume() (float64, bool) {
	if i.Volume24hUsd == nil {
		return 0, false
	}
	return *i.Volume24hUsd, true
}
