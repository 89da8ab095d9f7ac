// Package ingest discovers candidate mints from the log stream and the
// aggregator feeds, sanitizes them, and admits them into storage.
package ingest

import (
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Launchpad vanity suffixes appended to raw mint strings in some feeds.
var vanitySuffixes = []string{"pump", "bonk"}

// Quote-side mints that never represent a new token.
var quoteMints = map[string]bool{
	"So11111111111111111111111111111111111111112":  true, // wSOL
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": true, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": true, // USDT
}

// Log substrings that mark a pool birth rather than ordinary pool traffic.
var poolBirthMarkers = []string{
	"createpool",
	"initializepool",
	"initialize_pool",
	"pool-init",
	"open_pool",
	"initialize2",
}

// SanitizeMint normalizes a raw mint string and reports whether it is a
// plausible new-token mint. Vanity suffixes are stripped before the
// base58 and curve checks; quote-side mints are dropped.
func SanitizeMint(raw string) (string, bool) {
	mint := strings.TrimSpace(raw)
	for _, suffix := range vanitySuffixes {
		if trimmed, ok := strings.CutSuffix(mint, suffix); ok && validMint(trimmed) {
			mint = trimmed
			break
		}
	}
	if !validMint(mint) {
		return "", false
	}
	if quoteMints[mint] {
		return "", false
	}
	return mint, true
}

// validMint checks that the string decodes to a 32-byte ed25519 point.
func validMint(mint string) bool {
	if len(mint) < 32 || len(mint) > 44 {
		return false
	}
	decoded, err := base58.Decode(mint)
	if err != nil || len(decoded) != 32 {
		return false
	}
	return isOnCurve(decoded)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// HasPoolBirthMarker reports whether any log line contains a pool
// creation instruction.
func HasPoolBirthMarker(logs []string) bool {
	for _, line := range logs {
		lower := strings.ToLower(line)
		for _, marker := range poolBirthMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}
