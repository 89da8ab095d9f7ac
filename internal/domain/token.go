package domain

// Status is the lifecycle state of a discovered token.
type Status string

// Token lifecycle states.
const (
	// StatusDiscovered means the mint was admitted but not yet enriched.
	StatusDiscovered Status = "discovered"
	// StatusAnalyzing means an intake worker has claimed the row.
	StatusAnalyzing Status = "analyzing"
	// StatusAnalyzed means enrichment and scoring completed.
	StatusAnalyzed Status = "analyzed"
	// StatusRejected means enrichment failed or returned nothing usable.
	StatusRejected Status = "rejected"
	// StatusServed means the token appeared in at least one dispatched message.
	StatusServed Status = "served"
)

// Bucket is the scheduling category assigned by the scoring engine.
type Bucket string

// Scheduling buckets, lowest to highest refresh cadence.
const (
	BucketStandby  Bucket = "standby"
	BucketTop      Bucket = "top"
	BucketCooking  Bucket = "cooking"
	BucketFresh    Bucket = "fresh"
	BucketHatching Bucket = "hatching"
	BucketPriority Bucket = "priority"
)

// BucketPrecedence lists buckets from highest to lowest selection priority.
// Exactly one bucket is assigned per token; the first matching tag wins.
var BucketPrecedence = []Bucket{
	BucketPriority,
	BucketHatching,
	BucketFresh,
	BucketCooking,
	BucketTop,
	BucketStandby,
}

// Token represents a discovered token and its lifecycle state.
// Corresponds to the tokens table in PostgreSQL.
type Token struct {
	Mint           string  // PRIMARY KEY, base58 mint address
	Status         Status  // lifecycle state
	Bucket         Bucket  // scheduling bucket, empty until first analysis
	Priority       int     // 0-100 scheduling weight
	FinalScore     float64 // blended score, 0-100
	SafetyScore    float64 // SSS sub-score
	MarketScore    float64 // MMS sub-score
	Intel          *Intel  // latest enrichment record (nullable, JSONB)
	DiscoveredAt   int64   // Unix timestamp in milliseconds
	PoolCreatedAt  *int64  // on-chain pool creation time (ms), nullable
	LastAnalyzedAt *int64  // last successful enrichment (ms), nullable
	LastSnapshotAt *int64  // last stored market snapshot (ms), nullable
	LastServedAt   *int64  // last appearance in a dispatched message (ms), nullable
}

// AgeMinutes returns the token age in minutes relative to nowMs, preferring
// the on-chain pool creation time over the discovery time.
func (t *Token) AgeMinutes(nowMs int64) float64 {
	ref := t.DiscoveredAt
	if t.PoolCreatedAt != nil && *t.PoolCreatedAt > 0 {
		ref = *t.PoolCreatedAt
	}
	if ref <= 0 || ref > nowMs {
		return 0
	}
	return float64(nowMs-ref) / 60000.0
}
