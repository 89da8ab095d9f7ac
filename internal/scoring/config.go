// Package scoring turns an intel record into a final score, bucket tag
// and scheduling priority. Every function here is pure; time enters only
// through the age already computed on the intel record.
package scoring

// HolderTier is one top-10 concentration penalty step.
type HolderTier struct {
	ThresholdPct float64
	Penalty      float64
}

// AgeBracket holds the market-score weights and normalization constants
// for one asset-age range.
type AgeBracket struct {
	MaxAgeMinutes float64 // bracket applies below this age; 0 means no upper bound

	LiqWeight float64
	LiqK      float64
	VolWeight float64
	VolK      float64
	McWeight  float64
	McK       float64

	FollowerWeight float64
	FollowerK      float64

	Cap float64
}

// Config carries every scoring constant. DefaultConfig is used in
// production; tests construct variations.
type Config struct {
	// Safety score.
	SafetyBase       float64
	AuthorityPenalty float64
	HolderTiers      []HolderTier // checked in order, highest threshold first
	RiskLabelPenalty float64
	CreatorFreeMints int     // prior mints before the per-token penalty starts
	CreatorPenalty   float64 // per token beyond CreatorFreeMints
	CreatorCap       float64

	// Market score.
	Brackets []AgeBracket

	// Suspicion clamps.
	OldAgeMinutes float64 // "old" boundary for the low-volume clamp
	LowVolumeUsd  float64
	FlatChangePct float64
	HighLiquidity float64
	SuspicionCap  float64

	// Blend.
	YoungBlendMaxMinutes float64 // <7d
	MidBlendMaxMinutes   float64 // <=30d
	YoungSafetyWeight    float64
	MidSafetyWeight      float64
	OldSafetyWeight      float64

	// Confidence.
	ConfidenceFloor      float64
	ConfidenceSpan       float64
	MissingAgeConfidence float64

	// Tags.
	HatchingMaxAgeMinutes float64
	HatchingLiquidityMin  float64
	CookingMinChangePct   float64
	CookingMinVolumeUsd   float64
	FreshMaxAgeMinutes    float64

	// Buckets and priority.
	PriorityBucketMin float64
	TopBucketMinScore float64

	PriorityScoreWeight float64
	PriorityLiqWeight   float64
	PriorityLiqK        float64
	PriorityVolWeight   float64
	PriorityVolK        float64
	PriorityDecayStart  float64 // minutes before age decay kicks in
	PriorityDecayRate   float64 // points per minute past the start
}

// DefaultConfig returns the production scoring constants.
func DefaultConfig() Config {
	return Config{
		SafetyBase:       80,
		AuthorityPenalty: 60,
		HolderTiers: []HolderTier{
			{ThresholdPct: 80, Penalty: 40},
			{ThresholdPct: 60, Penalty: 25},
			{ThresholdPct: 40, Penalty: 10},
		},
		RiskLabelPenalty: 30,
		CreatorFreeMints: 5,
		CreatorPenalty:   3,
		CreatorCap:       25,

		Brackets: []AgeBracket{
			{ // under an hour: liquidity is nearly all that exists yet
				MaxAgeMinutes: 60,
				LiqWeight:     0.6, LiqK: 10_000,
				VolWeight: 0.3, VolK: 25_000,
				McWeight: 0.1, McK: 100_000,
				FollowerWeight: 0.0, FollowerK: 1,
				Cap: 85,
			},
			{ // under a day
				MaxAgeMinutes: 24 * 60,
				LiqWeight:     0.45, LiqK: 30_000,
				VolWeight: 0.35, VolK: 75_000,
				McWeight: 0.2, McK: 250_000,
				FollowerWeight: 0.05, FollowerK: 2_000,
				Cap: 90,
			},
			{ // under a week
				MaxAgeMinutes: 7 * 24 * 60,
				LiqWeight:     0.35, LiqK: 75_000,
				VolWeight: 0.4, VolK: 150_000,
				McWeight: 0.25, McK: 500_000,
				FollowerWeight: 0.05, FollowerK: 5_000,
				Cap: 100,
			},
			{ // a week and beyond
				MaxAgeMinutes: 0,
				LiqWeight:     0.3, LiqK: 150_000,
				VolWeight: 0.45, VolK: 300_000,
				McWeight: 0.25, McK: 1_000_000,
				FollowerWeight: 0.05, FollowerK: 10_000,
				Cap: 100,
			},
		},

		OldAgeMinutes: 24 * 60,
		LowVolumeUsd:  1_000,
		FlatChangePct: 0.5,
		HighLiquidity: 100_000,
		SuspicionCap:  35,

		YoungBlendMaxMinutes: 7 * 24 * 60,
		MidBlendMaxMinutes:   30 * 24 * 60,
		YoungSafetyWeight:    0.5,
		MidSafetyWeight:      0.35,
		OldSafetyWeight:      0.25,

		ConfidenceFloor:      0.3,
		ConfidenceSpan:       0.7,
		MissingAgeConfidence: 0.6,

		HatchingMaxAgeMinutes: 180,
		HatchingLiquidityMin:  300,
		CookingMinChangePct:   20,
		CookingMinVolumeUsd:   5_000,
		FreshMaxAgeMinutes:    24 * 60,

		PriorityBucketMin: 80,
		TopBucketMinScore: 70,

		PriorityScoreWeight: 0.6,
		PriorityLiqWeight:   20, PriorityLiqK: 50_000,
		PriorityVolWeight: 20, PriorityVolK: 100_000,
		PriorityDecayStart: 60,
		PriorityDecayRate:  0.05,
	}
}
