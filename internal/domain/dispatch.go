package domain

// DispatchRecord tracks the last message delivered for a (channel, segment)
// pair so the dispatcher can edit in place instead of re-sending.
// Corresponds to the dispatch_records table, one row per pair.
type DispatchRecord struct {
	ChannelID int64  // notification channel identity
	Segment   string // segment name (hatching, cooking, fresh, top)
	MessageID int64  // last sent or edited message identifier
	UpdatedAt int64  // Unix timestamp in milliseconds
}
