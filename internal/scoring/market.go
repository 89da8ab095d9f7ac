package scoring

import (
	"math"

	"solana-token-scout/internal/domain"
)

// MarketScore computes the market-health sub-score from the age bracket
// matching ageMinutes, with diminishing-returns terms per metric and
// downward clamps for suspicious liquidity/volume combinations.
func MarketScore(cfg Config, intel *domain.Intel, ageMinutes float64) float64 {
	if intel == nil {
		return 0
	}

	bracket := bracketFor(cfg, ageMinutes)
	var score float64

	if intel.LiquidityUsd != nil {
		score += saturating(bracket.LiqWeight, *intel.LiquidityUsd, bracket.LiqK)
	}
	if intel.Volume24hUsd != nil {
		score += saturating(bracket.VolWeight, *intel.Volume24hUsd, bracket.VolK)
	}
	if intel.MarketCapUsd != nil {
		score += saturating(bracket.McWeight, *intel.MarketCapUsd, bracket.McK)
	}
	if intel.Followers != nil && bracket.FollowerWeight > 0 {
		score += saturating(bracket.FollowerWeight, *intel.Followers, bracket.FollowerK)
	}

	if bracket.Cap > 0 && score > bracket.Cap {
		score = bracket.Cap
	}

	if ceiling, suspicious := suspicionCap(cfg, intel, ageMinutes); suspicious && score > ceiling {
		score = ceiling
	}

	return clamp(score, 0, 100)
}

// saturating is the w*100*x/(x+k) diminishing-returns shape.
func saturating(weight, value, k float64) float64 {
	if value <= 0 || k <= 0 {
		return 0
	}
	return weight * 100 * value / (value + k)
}

// suspicionCap detects combinations that suggest dead or faked markets.
// Each clamp caps the score; none of them zero it.
func suspicionCap(cfg Config, intel *domain.Intel, ageMinutes float64) (float64, bool) {
	vol, hasVol := intel.Volume()
	if !hasVol {
		return 0, false
	}

	lowVolume := vol < cfg.LowVolumeUsd

	// Old asset still doing no volume.
	if lowVolume && ageMinutes >= cfg.OldAgeMinutes {
		return cfg.SuspicionCap, true
	}

	// No volume and a flat price: nobody is trading this.
	if lowVolume && intel.PriceChange24h != nil && math.Abs(*intel.PriceChange24h) <= cfg.FlatChangePct {
		return cfg.SuspicionCap, true
	}

	// Deep liquidity nobody trades against smells one-sided.
	if liq, ok := intel.Liquidity(); ok && liq >= cfg.HighLiquidity && lowVolume {
		return cfg.SuspicionCap, true
	}

	return 0, false
}

func bracketFor(cfg Config, ageMinutes float64) AgeBracket {
	for _, b := range cfg.Brackets {
		if b.MaxAgeMinutes > 0 && ageMinutes < b.MaxAgeMinutes {
			return b
		}
	}
	if len(cfg.Brackets) == 0 {
		return AgeBracket{}
	}
	return cfg.Brackets[len(cfg.Brackets)-1]
}
