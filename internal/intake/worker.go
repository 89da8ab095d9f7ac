package intake

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/market"
	"solana-token-scout/internal/scoring"
	"solana-token-scout/internal/storage"
)

const (
	defaultTick        = 15 * time.Second
	defaultGrace       = 30 * time.Second
	defaultTarget      = 25 * time.Second
	defaultConcurrency = 10
)

// Enricher is the market-data side of intake; satisfied by *market.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, mint string, discoveredAt int64) (*domain.Intel, error)
}

// Metrics receives intake outcomes; nil disables reporting.
type Metrics interface {
	RecordIntakeCycle(batch int, d time.Duration)
	RecordIntakeOutcome(outcome string)
}

// Worker claims discovered assets past the indexing grace period,
// enriches and scores them, and promotes or rejects them. Claiming is
// atomic at the store so several workers can coexist.
type Worker struct {
	tokens    storage.TokenStore
	snapshots storage.SnapshotStore
	archive   storage.SnapshotArchive // optional
	enricher  Enricher
	scoreCfg  scoring.Config
	batch     *AdaptiveBatch
	metrics   Metrics
	logger    *log.Logger

	tick        time.Duration
	grace       time.Duration
	concurrency int
	now         func() time.Time
}

func NewWorker(tokens storage.TokenStore, snapshots storage.SnapshotStore, archive storage.SnapshotArchive, enricher Enricher, scoreCfg scoring.Config, metrics Metrics, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.New(log.Writer(), "[intake] ", log.LstdFlags)
	}
	return &Worker{
		tokens:      tokens,
		snapshots:   snapshots,
		archive:     archive,
		enricher:    enricher,
		scoreCfg:    scoreCfg,
		batch:       NewAdaptiveBatch(defaultTarget),
		metrics:     metrics,
		logger:      logger,
		tick:        defaultTick,
		grace:       defaultGrace,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
}

// Run executes cycles until the context ends.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Cycle(ctx)
		}
	}
}

// BatchSize reports the current adaptive batch size.
func (w *Worker) BatchSize() int {
	return w.batch.Size()
}

// Cycle claims and processes one batch.
func (w *Worker) Cycle(ctx context.Context) {
	size := w.batch.Size()
	cutoff := w.now().Add(-w.grace).UnixMilli()

	claimed, err := w.tokens.ClaimDiscovered(ctx, cutoff, size)
	if err != nil {
		w.logger.Printf("claim batch: %v", err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	start := w.now()
	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for _, token := range claimed {
		wg.Add(1)
		sem <- struct{}{}
		go func(t *domain.Token) {
			defer wg.Done()
			defer func() { <-sem }()
			w.process(ctx, t)
		}(token)
	}
	wg.Wait()

	elapsed := w.now().Sub(start)
	w.batch.Observe(elapsed)
	if w.metrics != nil {
		w.metrics.RecordIntakeCycle(len(claimed), elapsed)
	}
	w.logger.Printf("cycle processed %d assets in %s, next batch %d", len(claimed), elapsed.Round(time.Millisecond), w.batch.Size())
}

func (w *Worker) process(ctx context.Context, token *domain.Token) {
	intel, err := w.enricher.Enrich(ctx, token.Mint, token.DiscoveredAt)
	switch {
	case errors.Is(err, market.ErrNoData):
		// Nobody knows this mint: reject. Second chance may revive it.
		if err := w.tokens.UpdateStatus(ctx, token.Mint, domain.StatusRejected); err != nil {
			w.logger.Printf("reject %s: %v", token.Mint, err)
		}
		w.record("rejected")
		return
	case err != nil:
		// Transient: release the claim so a later cycle retries.
		if err := w.tokens.UpdateStatus(ctx, token.Mint, domain.StatusDiscovered); err != nil {
			w.logger.Printf("release %s: %v", token.Mint, err)
		}
		w.record("deferred")
		return
	}

	if err := Persist(ctx, w.tokens, w.snapshots, w.archive, w.scoreCfg, token.Mint, intel, w.now().UnixMilli()); err != nil {
		w.logger.Printf("persist %s: %v", token.Mint, err)
		w.record("error")
		return
	}
	w.record("analyzed")
}

func (w *Worker) record(outcome string) {
	if w.metrics != nil {
		w.metrics.RecordIntakeOutcome(outcome)
	}
}

// Persist scores an intel record and writes the token update, snapshot
// and optional archive row. Shared by intake and re-analysis so both
// persist in the same order: token row first, history after.
func Persist(ctx context.Context, tokens storage.TokenStore, snapshots storage.SnapshotStore, archive storage.SnapshotArchive, cfg scoring.Config, mint string, intel *domain.Intel, nowMs int64) error {
	res := scoring.Score(cfg, intel)

	upd := storage.AnalysisUpdate{
		Status:      domain.StatusAnalyzed,
		Bucket:      res.Bucket,
		Priority:    int(res.Priority),
		FinalScore:  res.Final,
		SafetyScore: res.Safety,
		MarketScore: res.Market,
		Intel:       intel,
		AnalyzedAt:  nowMs,
		SnapshotAt:  nowMs,
	}
	if intel != nil && intel.PairCreatedAt != nil {
		upd.PoolCreatedAt = intel.PairCreatedAt
	}
	if err := tokens.ApplyAnalysis(ctx, mint, upd); err != nil {
		return err
	}

	snap := snapshotFrom(mint, intel, nowMs)
	if err := snapshots.Insert(ctx, snap); err != nil {
		return err
	}
	if archive != nil {
		if err := archive.InsertBatch(ctx, []*domain.Snapshot{snap}); err != nil {
			// Archive is best-effort; the primary write already succeeded.
			return nil
		}
	}
	return nil
}

func snapshotFrom(mint string, intel *domain.Intel, nowMs int64) *domain.Snapshot {
	snap := &domain.Snapshot{Mint: mint, TakenAt: nowMs}
	if intel == nil {
		return snap
	}
	if intel.PriceUsd != nil {
		snap.PriceUsd = *intel.PriceUsd
	}
	if intel.LiquidityUsd != nil {
		snap.LiquidityUsd = *intel.LiquidityUsd
	}
	if intel.Volume24hUsd != nil {
		snap.Volume24hUsd = *intel.Volume24hUsd
	}
	if intel.MarketCapUsd != nil {
		snap.MarketCapUsd = *intel.MarketCapUsd
	}
	if intel.PriceChange24h != nil {
		snap.PriceChange24h = *intel.PriceChange24h
	}
	return snap
}
