package domain

// Source identifies which ingestion feed produced a discovery.
type Source string

const (
	SourceLogStream     Source = "LOG_STREAM"    // live pool-birth log subscription
	SourceDexScreener   Source = "DEXSCREENER"   // aggregator poller
	SourceGeckoTerminal Source = "GECKOTERMINAL" // aggregator poller
	SourceJupiter       Source = "JUPITER"       // aggregator poller
	SourceSecondChance  Source = "SECOND_CHANCE" // rejected token re-admitted
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// Candidate is a transient discovery emitted by an ingestion source. It is
// never persisted as-is; it becomes a Token only after passing sanitation,
// the recent-set check and the store existence check.
type Candidate struct {
	Mint         string // sanitized base58 mint address
	Source       Source // which feed produced it
	TxSignature  string // originating transaction, if known
	PoolAddress  string // pool account, if known
	DiscoveredAt int64  // Unix timestamp in milliseconds
}
