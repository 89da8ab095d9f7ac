package scoring

import "solana-token-scout/internal/domain"

// Tags are the boolean classifiers derived from an intel record before
// the final bucket is chosen.
type Tags struct {
	Hatching bool
	Cooking  bool
	Fresh    bool
}

// ComputeTags derives the hatching/cooking/fresh tags. Unknown liquidity
// counts as meeting the hatching floor: a brand-new pool the aggregators
// have not indexed yet is exactly what hatching is for.
func ComputeTags(cfg Config, intel *domain.Intel, ageMinutes float64) Tags {
	var tags Tags

	if ageMinutes <= cfg.HatchingMaxAgeMinutes {
		liq, known := liquidityOf(intel)
		if !known || liq >= cfg.HatchingLiquidityMin {
			tags.Hatching = true
		}
	}

	if intel != nil && intel.PriceChange24h != nil && intel.Volume24hUsd != nil {
		if *intel.PriceChange24h >= cfg.CookingMinChangePct && *intel.Volume24hUsd >= cfg.CookingMinVolumeUsd {
			tags.Cooking = true
		}
	}

	if ageMinutes < cfg.FreshMaxAgeMinutes {
		tags.Fresh = true
	}

	return tags
}

// Priority ranks an asset for scheduling: weighted final score plus
// diminishing-returns liquidity and volume terms, minus a linear decay
// once the asset ages past the decay start. Clamped to [0, 100].
func Priority(cfg Config, score float64, intel *domain.Intel, ageMinutes float64) float64 {
	p := cfg.PriorityScoreWeight * score

	if intel != nil {
		if intel.LiquidityUsd != nil {
			p += saturating(cfg.PriorityLiqWeight/100, *intel.LiquidityUsd, cfg.PriorityLiqK)
		}
		if intel.Volume24hUsd != nil {
			p += saturating(cfg.PriorityVolWeight/100, *intel.Volume24hUsd, cfg.PriorityVolK)
		}
	}

	if ageMinutes > cfg.PriorityDecayStart {
		p -= (ageMinutes - cfg.PriorityDecayStart) * cfg.PriorityDecayRate
	}

	return clamp(p, 0, 100)
}

// AssignBucket picks exactly one bucket by fixed precedence:
// priority > hatching > fresh > cooking > top > standby.
func AssignBucket(cfg Config, score, priority float64, tags Tags) domain.Bucket {
	switch {
	case priority >= cfg.PriorityBucketMin:
		return domain.BucketPriority
	case tags.Hatching:
		return domain.BucketHatching
	case tags.Fresh:
		return domain.BucketFresh
	case tags.Cooking:
		return domain.BucketCooking
	case score >= cfg.TopBucketMinScore:
		return domain.BucketTop
	default:
		return domain.BucketStandby
	}
}

// Result is the full scoring outcome for one asset.
type Result struct {
	Safety   float64
	Market   float64
	Final    float64
	Priority float64
	Tags     Tags
	Bucket   domain.Bucket
}

// Score runs the whole engine for one intel record.
func Score(cfg Config, intel *domain.Intel) Result {
	age := ageOf(intel)

	safety := SafetyScore(cfg, intel)
	market := MarketScore(cfg, intel, age)
	final := Blend(cfg, safety, market, age, intel)
	priority := Priority(cfg, final, intel, age)
	tags := ComputeTags(cfg, intel, age)

	return Result{
		Safety:   safety,
		Market:   market,
		Final:    final,
		Priority: priority,
		Tags:     tags,
		Bucket:   AssignBucket(cfg, final, priority, tags),
	}
}

func ageOf(intel *domain.Intel) float64 {
	if intel == nil || intel.AgeMinutes == nil {
		return 0
	}
	return *intel.AgeMinutes
}

func liquidityOf(intel *domain.Intel) (float64, bool) {
	if intel == nil {
		return 0, false
	}
	return intel.Liquidity()
}
