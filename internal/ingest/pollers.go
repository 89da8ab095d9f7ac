package ingest

import (
	"context"
	"log"
	"sync"
	"time"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/market"
)

const (
	pollInterval      = time.Minute
	maxAdmitsPerCycle = 30
)

// FeedSource is one aggregator discovery feed.
type FeedSource struct {
	Source domain.Source
	Fetch  func(ctx context.Context) ([]market.ProfileCandidate, error)
}

// Poller queries the aggregator feeds on a fixed cadence, merges the
// results, and admits up to maxAdmitsPerCycle candidates per cycle. Each
// feed runs inside its own error boundary so one broken source never
// starves the rest.
type Poller struct {
	sources  []FeedSource
	admitter *Admitter
	interval time.Duration
	maxAdmit int
	logger   *log.Logger
}

func NewPoller(admitter *Admitter, logger *log.Logger, sources ...FeedSource) *Poller {
	if logger == nil {
		logger = log.New(log.Writer(), "[poller] ", log.LstdFlags)
	}
	return &Poller{
		sources:  sources,
		admitter: admitter,
		interval: pollInterval,
		maxAdmit: maxAdmitsPerCycle,
		logger:   logger,
	}
}

// Run polls until the context ends. The first cycle fires immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep runs one polling pass. The feeds are queried concurrently so a
// hanging source costs only its own timeout, not the whole cycle; results
// are merged in declaration order to keep dedupe priority stable.
func (p *Poller) Sweep(ctx context.Context) {
	type feedResult struct {
		entries []market.ProfileCandidate
		err     error
	}
	results := make([]feedResult, len(p.sources))

	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func(i int, src FeedSource) {
			defer wg.Done()
			entries, err := p.fetch(ctx, src)
			results[i] = feedResult{entries: entries, err: err}
		}(i, src)
	}
	wg.Wait()

	merged := make([]domain.Candidate, 0, 64)
	seen := make(map[string]bool)

	for i, src := range p.sources {
		if results[i].err != nil {
			p.logger.Printf("source %s: %v", src.Source, results[i].err)
			continue
		}
		for _, e := range results[i].entries {
			if seen[e.Mint] {
				continue
			}
			seen[e.Mint] = true
			merged = append(merged, domain.Candidate{
				Mint:         e.Mint,
				Source:       src.Source,
				DiscoveredAt: e.SeenAt,
			})
		}
	}

	if len(merged) > p.maxAdmit {
		merged = merged[:p.maxAdmit]
	}
	if admitted := p.admitter.AdmitBatch(ctx, merged); admitted > 0 {
		p.logger.Printf("cycle admitted %d of %d candidates", admitted, len(merged))
	}
}

// fetch isolates one source call so a panicking or failing feed cannot
// take the cycle down.
func (p *Poller) fetch(ctx context.Context, src FeedSource) (entries []market.ProfileCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("source %s panicked: %v", src.Source, r)
			entries, err = nil, nil
		}
	}()
	return src.Fetch(ctx)
}
