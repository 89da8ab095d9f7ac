// Package market wraps the third-party market-data providers behind
// rate-limited, health-gated clients and composes their answers into a
// token intel record.
package market

import "errors"

var (
	// ErrNoData means every provider answered but none knows the token.
	// Callers treat this as a definitive "reject", not a transient failure.
	ErrNoData = errors.New("no market data for token")

	// ErrUnavailable means the provider was skipped because its circuit is
	// open. Callers fall back to cached data or try the next provider.
	ErrUnavailable = errors.New("provider unavailable")
)
