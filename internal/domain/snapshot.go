package domain

// Snapshot is an immutable, timestamped market-data sample for one token.
// Corresponds to the token_snapshots table; never mutated after insert.
type Snapshot struct {
	ID             int64   // assigned by storage
	Mint           string  // token mint address
	PriceUsd       float64 // USD price at sample time
	LiquidityUsd   float64
	Volume24hUsd   float64
	MarketCapUsd   float64
	PriceChange24h float64 // percent
	TakenAt        int64   // Unix timestamp in milliseconds
}

// StalerThan reports whether the snapshot is older than maxAgeMs at nowMs.
func (s *Snapshot) StalerThan(nowMs, maxAgeMs int64) bool {
	return nowMs-s.TakenAt > maxAgeMs
}
