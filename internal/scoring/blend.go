package scoring

import "solana-token-scout/internal/domain"

// Confidence measures how much of the expected intel actually arrived:
// liquidity, market cap, volume, age and the risk label. It maps the
// present count into [ConfidenceFloor, 1.0] so sparse data can never
// produce an extreme score in either direction. A record with no age at
// all is additionally capped, since every age-dependent decision is a
// guess for it.
func Confidence(cfg Config, intel *domain.Intel) float64 {
	if intel == nil {
		return cfg.ConfidenceFloor
	}

	present := 0
	if intel.LiquidityUsd != nil {
		present++
	}
	if intel.MarketCapUsd != nil {
		present++
	}
	if intel.Volume24hUsd != nil {
		present++
	}
	if intel.AgeMinutes != nil {
		present++
	}
	if intel.RiskLabel != nil {
		present++
	}

	conf := cfg.ConfidenceFloor + cfg.ConfidenceSpan*float64(present)/5
	if intel.AgeMinutes == nil && conf > cfg.MissingAgeConfidence {
		conf = cfg.MissingAgeConfidence
	}
	return conf
}

// Blend combines the two sub-scores with age-dependent weights, then
// dampens the result by confidence. Market health counts for more as an
// asset ages and safety red flags have had time to surface.
func Blend(cfg Config, safety, market, ageMinutes float64, intel *domain.Intel) float64 {
	var safetyWeight float64
	switch {
	case ageMinutes < cfg.YoungBlendMaxMinutes:
		safetyWeight = cfg.YoungSafetyWeight
	case ageMinutes <= cfg.MidBlendMaxMinutes:
		safetyWeight = cfg.MidSafetyWeight
	default:
		safetyWeight = cfg.OldSafetyWeight
	}

	blended := safetyWeight*safety + (1-safetyWeight)*market
	return clamp(blended*Confidence(cfg, intel), 0, 100)
}
