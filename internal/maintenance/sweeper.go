// Package maintenance prunes aged-out rows so the store stays bounded.
package maintenance

import (
	"context"
	"log"
	"strconv"
	"time"

	"solana-token-scout/internal/storage"
)

const (
	defaultInterval   = 24 * time.Hour
	snapshotRetention = 14 * 24 * time.Hour
	rejectedRetention = 7 * 24 * time.Hour

	lastRunKey = "maintenance.last_run_ms"
)

// Sweeper deletes old snapshots and stale rejected rows on a daily tick
// and records its last run in kv_state.
type Sweeper struct {
	tokens    storage.TokenStore
	snapshots storage.SnapshotStore
	kv        storage.KVStore
	logger    *log.Logger

	interval time.Duration
	now      func() time.Time
}

func NewSweeper(tokens storage.TokenStore, snapshots storage.SnapshotStore, kv storage.KVStore, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.New(log.Writer(), "[maintenance] ", log.LstdFlags)
	}
	return &Sweeper{
		tokens:    tokens,
		snapshots: snapshots,
		kv:        kv,
		logger:    logger,
		interval:  defaultInterval,
		now:       time.Now,
	}
}

// Run sweeps once at startup and then on the daily tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pruning pass. Individual failures are logged; a
// partial sweep finishes next time.
func (s *Sweeper) Sweep(ctx context.Context) {
	nowMs := s.now().UnixMilli()

	snapCutoff := nowMs - snapshotRetention.Milliseconds()
	snapsDeleted, err := s.snapshots.DeleteBefore(ctx, snapCutoff)
	if err != nil {
		s.logger.Printf("prune snapshots: %v", err)
	}

	rejectedCutoff := nowMs - rejectedRetention.Milliseconds()
	rejectedDeleted, err := s.tokens.DeleteRejectedBefore(ctx, rejectedCutoff)
	if err != nil {
		s.logger.Printf("prune rejected: %v", err)
	}

	if err := s.kv.Set(ctx, lastRunKey, strconv.FormatInt(nowMs, 10)); err != nil {
		s.logger.Printf("record last run: %v", err)
	}

	if snapsDeleted > 0 || rejectedDeleted > 0 {
		s.logger.Printf("pruned %d snapshots, %d rejected tokens", snapsDeleted, rejectedDeleted)
	}
}

// LastRun returns the previous sweep time in Unix milliseconds, zero
// when no sweep has run yet.
func (s *Sweeper) LastRun(ctx context.Context) int64 {
	raw, err := s.kv.Get(ctx, lastRunKey)
	if err != nil {
		return 0
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}
