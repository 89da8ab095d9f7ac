package ingest

import (
	"context"
	"errors"
	"log"
	"time"

	"solana-token-scout/internal/cache"
	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/ratelimit"
	"solana-token-scout/internal/storage"
)

const (
	recentMintCapacity = 4096

	admissionCapacity = 8
	admissionRefill   = 8
	admissionInterval = time.Second
)

// Admitter is the single doorway into the pipeline: every candidate from
// every source passes through it before a row exists in storage.
type Admitter struct {
	store   storage.TokenStore
	recent  *cache.RecentSet
	bucket  *ratelimit.Bucket
	logger  *log.Logger
	metrics AdmissionMetrics
}

// AdmissionMetrics receives admission outcomes; nil-safe via NopMetrics.
type AdmissionMetrics interface {
	RecordCandidate(source string)
	RecordAdmitted(source string)
}

type nopMetrics struct{}

func (nopMetrics) RecordCandidate(string) {}
func (nopMetrics) RecordAdmitted(string)  {}

// NopMetrics is an AdmissionMetrics that drops everything.
var NopMetrics AdmissionMetrics = nopMetrics{}

func NewAdmitter(store storage.TokenStore, metrics AdmissionMetrics, logger *log.Logger) *Admitter {
	if logger == nil {
		logger = log.New(log.Writer(), "[admit] ", log.LstdFlags)
	}
	if metrics == nil {
		metrics = NopMetrics
	}
	return &Admitter{
		store:   store,
		recent:  cache.NewRecentSet(recentMintCapacity),
		bucket:  ratelimit.NewBucket(admissionCapacity, admissionRefill, admissionInterval),
		logger:  logger,
		metrics: metrics,
	}
}

// Admit sanitizes and stores a candidate. It returns true when a new row
// was inserted. Duplicates and invalid addresses are silently dropped;
// only storage failures surface as errors.
func (a *Admitter) Admit(ctx context.Context, c domain.Candidate) (bool, error) {
	a.metrics.RecordCandidate(string(c.Source))

	mint, ok := SanitizeMint(c.Mint)
	if !ok {
		return false, nil
	}

	if !a.recent.Add(mint) {
		return false, nil
	}

	exists, err := a.store.Exists(ctx, mint)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	// Bursty sources queue here instead of flooding the intake worker.
	if err := a.bucket.Acquire(ctx, 1); err != nil {
		return false, err
	}

	discoveredAt := c.DiscoveredAt
	if discoveredAt == 0 {
		discoveredAt = time.Now().UnixMilli()
	}
	token := &domain.Token{
		Mint:         mint,
		Status:       domain.StatusDiscovered,
		Bucket:       domain.BucketStandby,
		DiscoveredAt: discoveredAt,
	}
	if err := a.store.Insert(ctx, token); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return false, nil
		}
		return false, err
	}

	a.metrics.RecordAdmitted(string(c.Source))
	a.logger.Printf("admitted %s from %s", mint, c.Source)
	return true, nil
}

// AdmitBatch admits a slice of candidates, stopping only on context
// cancellation. Individual storage failures are logged and skipped.
func (a *Admitter) AdmitBatch(ctx context.Context, candidates []domain.Candidate) int {
	admitted := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			return admitted
		}
		ok, err := a.Admit(ctx, c)
		if err != nil {
			a.logger.Printf("admit %s: %v", c.Mint, err)
			continue
		}
		if ok {
			admitted++
		}
	}
	return admitted
}
