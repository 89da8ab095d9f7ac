package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Token // keyed by mint
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.Token),
	}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a newly discovered token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[t.Mint] = copyToken(t)
	return nil
}

// Get retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(_ context.Context, mint string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyToken(t), nil
}

// Exists reports whether the mint is already known.
func (s *TokenStore) Exists(_ context.Context, mint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[mint]
	return exists, nil
}

// ClaimDiscovered atomically flips up to limit discovered tokens to analyzing
// and returns them, oldest first. The store mutex is held across the scan and
// the status flip, which is what makes the claim atomic.
func (s *TokenStore) ClaimDiscovered(_ context.Context, discoveredBefore int64, limit int) ([]*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []*domain.Token
	for _, t := range s.data {
		if t.Status == domain.StatusDiscovered && t.DiscoveredAt <= discoveredBefore {
			eligible = append(eligible, t)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].DiscoveredAt < eligible[j].DiscoveredAt
	})

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}

	claimed := make([]*domain.Token, 0, len(eligible))
	for _, t := range eligible {
		t.Status = domain.StatusAnalyzing
		claimed = append(claimed, copyToken(t))
	}
	return claimed, nil
}

// RequeueAnalyzing returns tokens stranded in analyzing by a crash to the
// discovered queue.
func (s *TokenStore) RequeueAnalyzing(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requeued int64
	for _, t := range s.data {
		if t.Status == domain.StatusAnalyzing {
			t.Status = domain.StatusDiscovered
			requeued++
		}
	}
	return requeued, nil
}

// UpdateStatus sets the status for a mint. Returns ErrNotFound if not exists.
func (s *TokenStore) UpdateStatus(_ context.Context, mint string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[mint]
	if !exists {
		return storage.ErrNotFound
	}
	t.Status = status
	return nil
}

// ApplyAnalysis persists the result of one enrichment pass.
func (s *TokenStore) ApplyAnalysis(_ context.Context, mint string, upd storage.AnalysisUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[mint]
	if !exists {
		return storage.ErrNotFound
	}

	t.Status = upd.Status
	t.Bucket = upd.Bucket
	t.Priority = upd.Priority
	t.FinalScore = upd.FinalScore
	t.SafetyScore = upd.SafetyScore
	t.MarketScore = upd.MarketScore
	t.Intel = copyIntel(upd.Intel)
	if upd.PoolCreatedAt != nil {
		v := *upd.PoolCreatedAt
		t.PoolCreatedAt = &v
	}
	analyzedAt := upd.AnalyzedAt
	t.LastAnalyzedAt = &analyzedAt
	if upd.SnapshotAt > 0 {
		snapshotAt := upd.SnapshotAt
		t.LastSnapshotAt = &snapshotAt
	}
	return nil
}

// MarkServed stamps last_served_at and promotes analyzed tokens to served.
func (s *TokenStore) MarkServed(_ context.Context, mints []string, servedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mint := range mints {
		t, exists := s.data[mint]
		if !exists {
			continue
		}
		ts := servedAt
		t.LastServedAt = &ts
		if t.Status == domain.StatusAnalyzed {
			t.Status = domain.StatusServed
		}
	}
	return nil
}

// ListStaleByBucket returns analyzed/served tokens in the bucket whose last
// analysis is at or before analyzedBefore, stalest first.
func (s *TokenStore) ListStaleByBucket(_ context.Context, bucket domain.Bucket, analyzedBefore int64, limit int) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if t.Bucket != bucket || !isServable(t.Status) {
			continue
		}
		if t.LastAnalyzedAt == nil || *t.LastAnalyzedAt > analyzedBefore {
			continue
		}
		result = append(result, copyToken(t))
	}

	sort.Slice(result, func(i, j int) bool {
		return *result[i].LastAnalyzedAt < *result[j].LastAnalyzedAt
	})

	return truncate(result, limit), nil
}

// ListByStatus returns tokens with the given status, oldest discovery first.
func (s *TokenStore) ListByStatus(_ context.Context, status domain.Status, limit int) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if t.Status == status {
			result = append(result, copyToken(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DiscoveredAt < result[j].DiscoveredAt
	})

	return truncate(result, limit), nil
}

// ListServableByBucket returns analyzed/served tokens in the bucket with
// final score at or above minScore, best first.
func (s *TokenStore) ListServableByBucket(_ context.Context, bucket domain.Bucket, minScore float64, limit int) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if t.Bucket == bucket && isServable(t.Status) && t.FinalScore >= minScore {
			result = append(result, copyToken(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FinalScore != result[j].FinalScore {
			return result[i].FinalScore > result[j].FinalScore
		}
		return result[i].Priority > result[j].Priority
	})

	return truncate(result, limit), nil
}

// ListByVolume returns analyzed/served tokens ordered by reported 24h volume.
func (s *TokenStore) ListByVolume(_ context.Context, limit int) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if isServable(t.Status) {
			result = append(result, copyToken(t))
		}
	}

	volume := func(t *domain.Token) float64 {
		if t.Intel == nil || t.Intel.Volume24hUsd == nil {
			return -1 // NULLS LAST
		}
		return *t.Intel.Volume24hUsd
	}
	sort.Slice(result, func(i, j int) bool {
		return volume(result[i]) > volume(result[j])
	})

	return truncate(result, limit), nil
}

// ListRecentlyAnalyzed returns analyzed/served tokens, freshest analysis first.
func (s *TokenStore) ListRecentlyAnalyzed(_ context.Context, limit int) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if isServable(t.Status) && t.LastAnalyzedAt != nil {
			result = append(result, copyToken(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return *result[i].LastAnalyzedAt > *result[j].LastAnalyzedAt
	})

	return truncate(result, limit), nil
}

// CountByStatus returns the number of tokens per status.
func (s *TokenStore) CountByStatus(_ context.Context) (map[domain.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.Status]int64)
	for _, t := range s.data {
		counts[t.Status]++
	}
	return counts, nil
}

// CountByBucket returns the number of analyzed/served tokens per bucket.
func (s *TokenStore) CountByBucket(_ context.Context) (map[domain.Bucket]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.Bucket]int64)
	for _, t := range s.data {
		if isServable(t.Status) {
			counts[t.Bucket]++
		}
	}
	return counts, nil
}

// DeleteRejectedBefore removes rejected tokens discovered at or before cutoff.
func (s *TokenStore) DeleteRejectedBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for mint, t := range s.data {
		if t.Status == domain.StatusRejected && t.DiscoveredAt <= cutoff {
			delete(s.data, mint)
			removed++
		}
	}
	return removed, nil
}

func isServable(status domain.Status) bool {
	return status == domain.StatusAnalyzed || status == domain.StatusServed
}

func truncate(tokens []*domain.Token, limit int) []*domain.Token {
	if limit > 0 && len(tokens) > limit {
		return tokens[:limit]
	}
	return tokens
}

// copyToken returns a deep copy to prevent external mutation.
func copyToken(t *domain.Token) *domain.Token {
	c := *t
	c.Intel = copyIntel(t.Intel)
	c.PoolCreatedAt = copyInt64(t.PoolCreatedAt)
	c.LastAnalyzedAt = copyInt64(t.LastAnalyzedAt)
	c.LastSnapshotAt = copyInt64(t.LastSnapshotAt)
	c.LastServedAt = copyInt64(t.LastServedAt)
	return &c
}

func copyIntel(i *domain.Intel) *domain.Intel {
	if i == nil {
		return nil
	}
	c := *i
	c.PriceUsd = copyFloat64(i.PriceUsd)
	c.LiquidityUsd = copyFloat64(i.LiquidityUsd)
	c.Volume24hUsd = copyFloat64(i.Volume24hUsd)
	c.MarketCapUsd = copyFloat64(i.MarketCapUsd)
	c.PriceChange24h = copyFloat64(i.PriceChange24h)
	c.PairCreatedAt = copyInt64(i.PairCreatedAt)
	c.TopHolderPct = copyFloat64(i.TopHolderPct)
	c.Followers = copyFloat64(i.Followers)
	c.AgeMinutes = copyFloat64(i.AgeMinutes)
	if i.MintAuthority != nil {
		v := *i.MintAuthority
		c.MintAuthority = &v
	}
	if i.FreezeAuthority != nil {
		v := *i.FreezeAuthority
		c.FreezeAuthority = &v
	}
	if i.RiskLabel != nil {
		v := *i.RiskLabel
		c.RiskLabel = &v
	}
	if i.CreatorMints != nil {
		v := *i.CreatorMints
		c.CreatorMints = &v
	}
	c.Socials = append([]string(nil), i.Socials...)
	return &c
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat64(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
