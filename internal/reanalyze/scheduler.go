// Package reanalyze keeps already-analyzed assets current: per-bucket
// refresh cadences, snapshot fallback during provider outages, and the
// second-chance sweep over rejected assets.
package reanalyze

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/intake"
	"solana-token-scout/internal/market"
	"solana-token-scout/internal/scoring"
	"solana-token-scout/internal/storage"
)

const (
	defaultTick        = 30 * time.Second
	defaultBatchLimit  = 50
	defaultConcurrency = 6

	// Snapshot fallback window during provider outages.
	snapshotMaxAge = 1200 * time.Second
)

// Cadences maps each bucket to its refresh interval. Hot buckets refresh
// often; the standby pool rarely.
var defaultCadences = map[domain.Bucket]time.Duration{
	domain.BucketPriority: 2 * time.Minute,
	domain.BucketHatching: 2 * time.Minute,
	domain.BucketFresh:    12 * time.Minute,
	domain.BucketCooking:  5 * time.Minute,
	domain.BucketTop:      45 * time.Minute,
	domain.BucketStandby:  45 * time.Minute,
}

// Metrics receives re-analysis outcomes; nil disables reporting.
type Metrics interface {
	RecordReanalysis(outcome string)
}

// Scheduler refreshes analyzed assets on per-bucket cadences.
type Scheduler struct {
	tokens    storage.TokenStore
	snapshots storage.SnapshotStore
	archive   storage.SnapshotArchive
	enricher  intake.Enricher
	scoreCfg  scoring.Config
	metrics   Metrics
	logger    *log.Logger

	tick        time.Duration
	cadences    map[domain.Bucket]time.Duration
	batchLimit  int
	concurrency int
	now         func() time.Time
}

func NewScheduler(tokens storage.TokenStore, snapshots storage.SnapshotStore, archive storage.SnapshotArchive, enricher intake.Enricher, scoreCfg scoring.Config, metrics Metrics, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.Writer(), "[reanalyze] ", log.LstdFlags)
	}
	return &Scheduler{
		tokens:      tokens,
		snapshots:   snapshots,
		archive:     archive,
		enricher:    enricher,
		scoreCfg:    scoreCfg,
		metrics:     metrics,
		logger:      logger,
		tick:        defaultTick,
		cadences:    defaultCadences,
		batchLimit:  defaultBatchLimit,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
}

// Run ticks until the context ends.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle selects due assets in bucket precedence order, staleness within
// a bucket, and refreshes them with bounded concurrency.
func (s *Scheduler) Cycle(ctx context.Context) {
	due := s.selectDue(ctx)
	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, token := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(t *domain.Token) {
			defer wg.Done()
			defer func() { <-sem }()
			s.refresh(ctx, t)
		}(token)
	}
	wg.Wait()
}

func (s *Scheduler) selectDue(ctx context.Context) []*domain.Token {
	nowMs := s.now().UnixMilli()
	due := make([]*domain.Token, 0, s.batchLimit)

	for _, bucket := range domain.BucketPrecedence {
		remaining := s.batchLimit - len(due)
		if remaining <= 0 {
			break
		}
		cadence, ok := s.cadences[bucket]
		if !ok {
			continue
		}
		staleBefore := nowMs - cadence.Milliseconds()
		tokens, err := s.tokens.ListStaleByBucket(ctx, bucket, staleBefore, remaining)
		if err != nil {
			s.logger.Printf("select bucket %s: %v", bucket, err)
			continue
		}
		due = append(due, tokens...)
	}
	return due
}

// refresh re-enriches one asset. Transient fetch failures fall back to
// the freshest stored snapshot when it is recent enough; otherwise the
// asset is left untouched. A refresh never regresses an asset to rejected.
func (s *Scheduler) refresh(ctx context.Context, token *domain.Token) {
	nowMs := s.now().UnixMilli()

	intel, err := s.enricher.Enrich(ctx, token.Mint, s.discoveryAnchor(token))
	switch {
	case errors.Is(err, market.ErrNoData):
		// A once-analyzed asset that vanished upstream keeps its last
		// state; the maintenance sweep is the only path that removes it.
		s.record("vanished")
		return
	case err != nil:
		if s.refreshFromSnapshot(ctx, token, nowMs) {
			s.record("snapshot_fallback")
			return
		}
		s.logger.Printf("refresh %s: %v, no usable snapshot", token.Mint, err)
		s.record("skipped")
		return
	}

	if err := intake.Persist(ctx, s.tokens, s.snapshots, s.archive, s.scoreCfg, token.Mint, intel, nowMs); err != nil {
		s.logger.Printf("persist %s: %v", token.Mint, err)
		s.record("error")
		return
	}
	s.record("refreshed")
}

// discoveryAnchor prefers the pool creation time over discovery time for
// age computation.
func (s *Scheduler) discoveryAnchor(token *domain.Token) int64 {
	if token.PoolCreatedAt != nil && *token.PoolCreatedAt > 0 {
		return *token.PoolCreatedAt
	}
	return token.DiscoveredAt
}

// refreshFromSnapshot rescores from the stored snapshot if it is within
// the staleness window. Returns false when no snapshot can serve.
func (s *Scheduler) refreshFromSnapshot(ctx context.Context, token *domain.Token, nowMs int64) bool {
	snap, err := s.snapshots.Latest(ctx, token.Mint)
	if err != nil {
		return false
	}
	if snap.StalerThan(nowMs, snapshotMaxAge.Milliseconds()) {
		return false
	}

	intel := token.Intel
	if intel == nil {
		intel = &domain.Intel{}
	}
	price, liq, vol, mc, chg := snap.PriceUsd, snap.LiquidityUsd, snap.Volume24hUsd, snap.MarketCapUsd, snap.PriceChange24h
	intel.PriceUsd = &price
	intel.LiquidityUsd = &liq
	intel.Volume24hUsd = &vol
	intel.MarketCapUsd = &mc
	intel.PriceChange24h = &chg
	age := float64(nowMs-s.discoveryAnchor(token)) / 60000.0
	intel.AgeMinutes = &age

	res := scoring.Score(s.scoreCfg, intel)
	upd := storage.AnalysisUpdate{
		Status:      domain.StatusAnalyzed,
		Bucket:      res.Bucket,
		Priority:    int(res.Priority),
		FinalScore:  res.Final,
		SafetyScore: res.Safety,
		MarketScore: res.Market,
		Intel:       intel,
		AnalyzedAt:  nowMs,
	}
	if err := s.tokens.ApplyAnalysis(ctx, token.Mint, upd); err != nil {
		s.logger.Printf("snapshot rescore %s: %v", token.Mint, err)
		return false
	}
	return true
}

func (s *Scheduler) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordReanalysis(outcome)
	}
}
