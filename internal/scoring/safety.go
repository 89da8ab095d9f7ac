package scoring

import "solana-token-scout/internal/domain"

// SafetyScore computes the safety sub-score: a configurable base with
// deductions for on-chain red flags, floored at zero. Deductions never
// hard-kill an asset; the blend decides its fate.
func SafetyScore(cfg Config, intel *domain.Intel) float64 {
	score := cfg.SafetyBase
	if intel == nil {
		return clamp(score, 0, 100)
	}

	if intel.HasActiveAuthority() {
		score -= cfg.AuthorityPenalty
	}

	// Tiers do not stack: only the highest threshold met applies.
	if intel.TopHolderPct != nil {
		for _, tier := range cfg.HolderTiers {
			if *intel.TopHolderPct >= tier.ThresholdPct {
				score -= tier.Penalty
				break
			}
		}
	}

	if intel.RiskLabel != nil && *intel.RiskLabel == "danger" {
		score -= cfg.RiskLabelPenalty
	}

	if intel.CreatorMints != nil && *intel.CreatorMints > cfg.CreatorFreeMints {
		extra := float64(*intel.CreatorMints-cfg.CreatorFreeMints) * cfg.CreatorPenalty
		if extra > cfg.CreatorCap {
			extra = cfg.CreatorCap
		}
		score -= extra
	}

	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
