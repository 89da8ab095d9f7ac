package scoring

import (
	"testing"

	"solana-token-scout/internal/domain"
)

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }
func str(s string) *string   { return &s }

func TestSafetyScoreCleanToken(t *testing.T) {
	cfg := DefaultConfig()
	top := 30.0
	intel := &domain.Intel{TopHolderPct: &top}

	if got := SafetyScore(cfg, intel); got != 80 {
		t.Errorf("clean token safety = %v, want 80", got)
	}
}

func TestSafetyScoreAuthorityPenalty(t *testing.T) {
	cfg := DefaultConfig()
	intel := &domain.Intel{MintAuthority: str("someAuthority")}

	if got := SafetyScore(cfg, intel); got != 20 {
		t.Errorf("safety with active authority = %v, want 20", got)
	}
}

func TestSafetyScoreHolderTiersDoNotStack(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		pct  float64
		want float64
	}{
		{85, 40}, // only the >=80 tier
		{65, 55}, // only the >=60 tier
		{45, 70}, // only the >=40 tier
		{30, 80}, // no tier
	}
	for _, tc := range cases {
		intel := &domain.Intel{TopHolderPct: f64(tc.pct)}
		if got := SafetyScore(cfg, intel); got != tc.want {
			t.Errorf("safety at %v%% concentration = %v, want %v", tc.pct, got, tc.want)
		}
	}
}

func TestSafetyScoreCreatorPenaltyCapped(t *testing.T) {
	cfg := DefaultConfig()

	// 8 prior mints: 3 beyond the free 5, 9 points off.
	if got := SafetyScore(cfg, &domain.Intel{CreatorMints: i(8)}); got != 71 {
		t.Errorf("safety with 8 creator mints = %v, want 71", got)
	}
	// 100 prior mints: penalty hits the 25-point cap.
	if got := SafetyScore(cfg, &domain.Intel{CreatorMints: i(100)}); got != 55 {
		t.Errorf("safety with 100 creator mints = %v, want 55", got)
	}
}

func TestSafetyScoreFlooredAtZero(t *testing.T) {
	cfg := DefaultConfig()
	intel := &domain.Intel{
		MintAuthority: str("auth"),
		TopHolderPct:  f64(95),
		RiskLabel:     str("danger"),
		CreatorMints:  i(50),
	}
	if got := SafetyScore(cfg, intel); got != 0 {
		t.Errorf("worst-case safety = %v, want floor 0", got)
	}
}

func TestMarketScoreRespectsBracketCap(t *testing.T) {
	cfg := DefaultConfig()
	intel := &domain.Intel{
		LiquidityUsd: f64(100_000_000),
		Volume24hUsd: f64(100_000_000),
		MarketCapUsd: f64(1_000_000_000),
	}
	got := MarketScore(cfg, intel, 30) // under-an-hour bracket, cap 85
	if got > 85 {
		t.Errorf("market score %v exceeds the bracket cap 85", got)
	}
}

func TestMarketScoreSuspicionClamps(t *testing.T) {
	cfg := DefaultConfig()

	// High liquidity, dead volume: one-sided market.
	oneSided := &domain.Intel{
		LiquidityUsd: f64(500_000),
		Volume24hUsd: f64(100),
		MarketCapUsd: f64(2_000_000),
	}
	if got := MarketScore(cfg, oneSided, 30); got > cfg.SuspicionCap {
		t.Errorf("one-sided market scored %v, clamp is %v", got, cfg.SuspicionCap)
	}

	// Old and no volume.
	stale := &domain.Intel{
		LiquidityUsd: f64(50_000),
		Volume24hUsd: f64(200),
	}
	if got := MarketScore(cfg, stale, 3*24*60); got > cfg.SuspicionCap {
		t.Errorf("dead old market scored %v, clamp is %v", got, cfg.SuspicionCap)
	}
}

func TestConfidenceSparseData(t *testing.T) {
	cfg := DefaultConfig()

	// liquidity and age present; market cap, volume, risk label missing.
	sparse := &domain.Intel{
		LiquidityUsd: f64(1000),
		AgeMinutes:   f64(10),
	}
	if got := Confidence(cfg, sparse); got > 0.6 {
		t.Errorf("2-of-5 confidence = %v, want <= 0.6", got)
	}

	full := &domain.Intel{
		LiquidityUsd: f64(1000),
		MarketCapUsd: f64(5000),
		Volume24hUsd: f64(2000),
		AgeMinutes:   f64(10),
		RiskLabel:    str("good"),
	}
	if got := Confidence(cfg, full); got != 1.0 {
		t.Errorf("full confidence = %v, want 1.0", got)
	}
}

func TestConfidenceCappedWithoutAge(t *testing.T) {
	cfg := DefaultConfig()
	intel := &domain.Intel{
		LiquidityUsd: f64(1000),
		MarketCapUsd: f64(5000),
		Volume24hUsd: f64(2000),
		RiskLabel:    str("good"),
	}
	if got := Confidence(cfg, intel); got > cfg.MissingAgeConfidence {
		t.Errorf("confidence without age = %v, cap is %v", got, cfg.MissingAgeConfidence)
	}
}

func TestPriorityDecaysStrictlyPastOneHour(t *testing.T) {
	cfg := DefaultConfig()
	intel := &domain.Intel{
		LiquidityUsd: f64(50_000),
		Volume24hUsd: f64(100_000),
	}

	prev := Priority(cfg, 70, intel, 61)
	for age := 120.0; age <= 600; age += 60 {
		p := Priority(cfg, 70, intel, age)
		if p >= prev {
			t.Fatalf("priority did not strictly decrease: age %v gave %v, earlier %v", age, p, prev)
		}
		prev = p
	}
}

func TestPriorityNonDecreasingInScore(t *testing.T) {
	cfg := DefaultConfig()
	intel := &domain.Intel{LiquidityUsd: f64(10_000)}

	prev := -1.0
	for score := 0.0; score <= 100; score += 10 {
		p := Priority(cfg, score, intel, 30)
		if p < prev {
			t.Fatalf("priority decreased as score rose: score %v gave %v, earlier %v", score, p, prev)
		}
		prev = p
	}
}

func TestBucketPrecedencePriorityWins(t *testing.T) {
	cfg := DefaultConfig()
	bucket := AssignBucket(cfg, 50, 85, Tags{Hatching: true, Fresh: true})
	if bucket != domain.BucketPriority {
		t.Errorf("bucket = %q, want priority to win precedence", bucket)
	}
}

func TestBucketPrecedenceOrder(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		score    float64
		priority float64
		tags     Tags
		want     domain.Bucket
	}{
		{50, 85, Tags{Hatching: true}, domain.BucketPriority},
		{50, 20, Tags{Hatching: true, Fresh: true, Cooking: true}, domain.BucketHatching},
		{50, 20, Tags{Fresh: true, Cooking: true}, domain.BucketFresh},
		{50, 20, Tags{Cooking: true}, domain.BucketCooking},
		{75, 20, Tags{}, domain.BucketTop},
		{50, 20, Tags{}, domain.BucketStandby},
	}
	for _, tc := range cases {
		if got := AssignBucket(cfg, tc.score, tc.priority, tc.tags); got != tc.want {
			t.Errorf("AssignBucket(%v, %v, %+v) = %q, want %q", tc.score, tc.priority, tc.tags, got, tc.want)
		}
	}
}

func TestScoreNewHatchingToken(t *testing.T) {
	cfg := DefaultConfig()
	intel := &domain.Intel{
		LiquidityUsd: f64(500),
		AgeMinutes:   f64(10),
		TopHolderPct: f64(30),
	}

	res := Score(cfg, intel)
	if res.Safety != 80 {
		t.Errorf("safety = %v, want 80 with no penalties", res.Safety)
	}
	if !res.Tags.Hatching {
		t.Error("young funded token should tag hatching")
	}
	if !res.Tags.Fresh {
		t.Error("10-minute-old token should tag fresh")
	}
	if res.Bucket != domain.BucketHatching {
		t.Errorf("bucket = %q, want hatching by precedence", res.Bucket)
	}
}

func TestHatchingUnknownLiquidityCounts(t *testing.T) {
	cfg := DefaultConfig()
	tags := ComputeTags(cfg, &domain.Intel{}, 10)
	if !tags.Hatching {
		t.Error("unknown liquidity should still qualify for hatching")
	}

	low := &domain.Intel{LiquidityUsd: f64(100)}
	tags = ComputeTags(cfg, low, 10)
	if tags.Hatching {
		t.Error("known liquidity below the floor should not qualify")
	}
}
