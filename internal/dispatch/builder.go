package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

const (
	segmentTopN      = 10
	staleSnapshotMs  = 1200_000
	degradedMarker   = "⚠️ data may be stale"
	emptySegmentText = "no assets match this segment right now"
)

// Segment describes one kind of outgoing digest.
type Segment struct {
	Name     string
	Bucket   domain.Bucket
	MinScore float64
	Interval time.Duration
}

// DefaultSegments are the production digests and their cadences.
var DefaultSegments = []Segment{
	{Name: "hatching", Bucket: domain.BucketHatching, MinScore: 0, Interval: 5 * time.Minute},
	{Name: "cooking", Bucket: domain.BucketCooking, MinScore: 0, Interval: time.Minute},
	{Name: "fresh", Bucket: domain.BucketFresh, MinScore: 0, Interval: time.Minute},
	{Name: "top", Bucket: domain.BucketTop, MinScore: 70, Interval: time.Hour},
}

// LiteModeSource reports whether the process is in degraded mode.
// Satisfied by *market.Gate.
type LiteModeSource interface {
	LiteMode() bool
}

// Builder renders segment digests from already-persisted data. It never
// triggers a live fetch; staleness is flagged, not repaired, here.
type Builder struct {
	tokens    storage.TokenStore
	snapshots storage.SnapshotStore
	lite      LiteModeSource
	now       func() time.Time
}

func NewBuilder(tokens storage.TokenStore, snapshots storage.SnapshotStore, lite LiteModeSource) *Builder {
	return &Builder{tokens: tokens, snapshots: snapshots, lite: lite, now: time.Now}
}

// Build renders the digest for a segment. The selection degrades
// progressively: the segment's own bucket query, then a volume ranking,
// then plain recency, so a channel never goes silent just because one
// tag has no members. The returned mints are the assets shown.
func (b *Builder) Build(ctx context.Context, segment Segment) (text string, mints []string, err error) {
	tokens, err := b.tokens.ListServableByBucket(ctx, segment.Bucket, segment.MinScore, segmentTopN)
	if err != nil {
		return "", nil, err
	}
	if len(tokens) == 0 {
		tokens, err = b.tokens.ListByVolume(ctx, segmentTopN)
		if err != nil {
			return "", nil, err
		}
	}
	if len(tokens) == 0 {
		tokens, err = b.tokens.ListRecentlyAnalyzed(ctx, segmentTopN)
		if err != nil {
			return "", nil, err
		}
	}
	if len(tokens) == 0 {
		return fmt.Sprintf("<b>%s</b>\n%s", strings.ToUpper(segment.Name), emptySegmentText), nil, nil
	}

	degraded := b.lite != nil && b.lite.LiteMode()
	nowMs := b.now().UnixMilli()

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b> · %s\n", strings.ToUpper(segment.Name), b.now().UTC().Format("15:04"))
	for i, token := range tokens {
		sb.WriteString(b.renderLine(ctx, i+1, token, nowMs, &degraded))
	}
	if degraded {
		sb.WriteString("\n")
		sb.WriteString(degradedMarker)
	}

	mints = make([]string, 0, len(tokens))
	for _, t := range tokens {
		mints = append(mints, t.Mint)
	}
	return sb.String(), mints, nil
}

func (b *Builder) renderLine(ctx context.Context, rank int, token *domain.Token, nowMs int64, degraded *bool) string {
	name := token.Mint
	if token.Intel != nil && token.Intel.Symbol != "" {
		name = token.Intel.Symbol
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d. <code>%s</code> score %.0f", rank, name, token.FinalScore)
	if token.Intel != nil {
		if liq, ok := token.Intel.Liquidity(); ok {
			fmt.Fprintf(&sb, " · liq $%s", compactUsd(liq))
		}
		if vol, ok := token.Intel.Volume(); ok {
			fmt.Fprintf(&sb, " · vol $%s", compactUsd(vol))
		}
		if token.Intel.PriceChange24h != nil {
			fmt.Fprintf(&sb, " · %+.1f%%", *token.Intel.PriceChange24h)
		}
	}
	sb.WriteString("\n")

	// One stale snapshot marks the whole digest degraded.
	if snap, err := b.snapshots.Latest(ctx, token.Mint); err == nil && snap.StalerThan(nowMs, staleSnapshotMs) {
		*degraded = true
	}
	return sb.String()
}

func compactUsd(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", v/1_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
