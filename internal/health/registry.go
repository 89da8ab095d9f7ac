// Package health tracks per-provider success/failure statistics and gates
// outbound calls with a circuit breaker.
package health

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// CircuitState is the breaker state for one provider.
type CircuitState string

const (
	// CircuitClosed means calls flow normally.
	CircuitClosed CircuitState = "CLOSED"
	// CircuitOpen means calls are skipped until the cooldown deadline.
	CircuitOpen CircuitState = "OPEN"
)

// Config controls circuit-breaker behavior.
type Config struct {
	// MinSamples is the minimum number of recorded calls before a circuit
	// can open.
	MinSamples int
	// FailureRatio is the failure fraction at or above which the circuit opens.
	FailureRatio float64
	// Cooldown is how long an open circuit stays open before half-opening.
	Cooldown time.Duration
	// DecayInterval is how often the background relaxation timer fires.
	DecayInterval time.Duration
	// DecayFactor multiplies every failure count each relaxation tick.
	DecayFactor float64
}

// DefaultConfig returns production circuit-breaker settings.
func DefaultConfig() Config {
	return Config{
		MinSamples:    15,
		FailureRatio:  0.6,
		Cooldown:      5 * time.Minute,
		DecayInterval: 2 * time.Minute,
		DecayFactor:   0.8,
	}
}

// ProviderStat is a read-only view of one provider's health, exposed on the
// diagnostics surface.
type ProviderStat struct {
	Provider    string       `json:"provider"`
	Successes   int64        `json:"successes"`
	Failures    float64      `json:"failures"`
	Circuit     CircuitState `json:"circuit"`
	OpenedAt    int64        `json:"opened_at,omitempty"`    // ms
	CooldownTo  int64        `json:"cooldown_to,omitempty"`  // ms
	LastSuccess int64        `json:"last_success,omitempty"` // ms
	LastFailure int64        `json:"last_failure,omitempty"` // ms
	AvgLatency  float64      `json:"avg_latency_ms,omitempty"`
}

// providerState is the mutable bookkeeping for one provider.
type providerState struct {
	successes   int64
	failures    float64 // fractional because of decay and half-open halving
	circuit     CircuitState
	openedAt    time.Time
	cooldownTo  time.Time
	halfOpen    bool
	lastSuccess time.Time
	lastFailure time.Time
	latencySum  time.Duration
	latencyN    int64
}

// Registry tracks provider health process-wide. All methods are safe for
// concurrent use. The registry never returns errors to callers: they decide
// whether to skip a call, fall back to cached data, or degrade output.
type Registry struct {
	mu        sync.Mutex
	providers map[string]*providerState
	cfg       Config
	liteUntil time.Time
	logger    *log.Logger
	now       func() time.Time
}

// NewRegistry creates a health registry. A nil logger disables logging.
func NewRegistry(cfg Config, logger *log.Logger) *Registry {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultConfig().MinSamples
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = DefaultConfig().FailureRatio
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if cfg.DecayInterval <= 0 {
		cfg.DecayInterval = DefaultConfig().DecayInterval
	}
	if cfg.DecayFactor <= 0 || cfg.DecayFactor >= 1 {
		cfg.DecayFactor = DefaultConfig().DecayFactor
	}
	if logger == nil {
		logger = log.New(discard{}, "", 0)
	}
	return &Registry{
		providers: make(map[string]*providerState),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// state returns the bookkeeping for a provider, creating it lazily.
// Caller must hold r.mu.
func (r *Registry) state(provider string) *providerState {
	st, ok := r.providers[provider]
	if !ok {
		st = &providerState{circuit: CircuitClosed}
		r.providers[provider] = st
	}
	return st
}

// RecordSuccess records a successful call. A success while half-open closes
// the circuit and halves the failure count so one good probe does not erase
// all history at once.
func (r *Registry) RecordSuccess(provider string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(provider)
	st.successes++
	st.lastSuccess = r.now()
	st.latencySum += latency
	st.latencyN++

	if st.circuit == CircuitOpen && st.halfOpen {
		st.circuit = CircuitClosed
		st.halfOpen = false
		st.failures /= 2
		r.logger.Printf("circuit closed for %s after successful probe (failures halved to %.1f)",
			provider, st.failures)
	}
}

// RecordFailure records a failed call and opens the circuit when the failure
// ratio crosses the threshold over enough samples. Opening the circuit also
// raises the process-wide lite-mode flag until the cooldown deadline.
func (r *Registry) RecordFailure(provider string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	st := r.state(provider)
	st.failures++
	st.lastFailure = now

	if st.circuit == CircuitOpen {
		if st.halfOpen {
			// Failed probe re-arms the cooldown.
			st.halfOpen = false
			st.openedAt = now
			st.cooldownTo = now.Add(r.cfg.Cooldown)
			r.extendLiteLocked(st.cooldownTo)
			r.logger.Printf("half-open probe failed for %s, circuit re-armed until %s: %v",
				provider, st.cooldownTo.Format(time.RFC3339), err)
		}
		return
	}

	total := float64(st.successes) + st.failures
	if total < float64(r.cfg.MinSamples) {
		return
	}
	ratio := st.failures / total
	if ratio < r.cfg.FailureRatio {
		return
	}

	st.circuit = CircuitOpen
	st.halfOpen = false
	st.openedAt = now
	st.cooldownTo = now.Add(r.cfg.Cooldown)
	r.extendLiteLocked(st.cooldownTo)
	r.logger.Printf("circuit OPEN for %s: %.0f/%.0f failures (%.0f%%), cooldown until %s, last error: %v",
		provider, st.failures, total, ratio*100, st.cooldownTo.Format(time.RFC3339), err)
}

// extendLiteLocked raises the lite-mode deadline. Caller must hold r.mu.
func (r *Registry) extendLiteLocked(until time.Time) {
	if until.After(r.liteUntil) {
		r.liteUntil = until
	}
}

// Available reports whether calls to the provider should be attempted. When
// an open circuit's cooldown has elapsed it half-opens: exactly one call is
// let through as a probe; the rest stay blocked until the probe's outcome
// is recorded.
func (r *Registry) Available(provider string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.providers[provider]
	if !ok || st.circuit == CircuitClosed {
		return true
	}

	if r.now().Before(st.cooldownTo) {
		return false
	}

	// Probe already in flight.
	if st.halfOpen {
		return false
	}
	st.halfOpen = true
	return true
}

// LiteMode reports whether any circuit opened recently enough that downstream
// output should be marked as degraded.
func (r *Registry) LiteMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Before(r.liteUntil)
}

// Stats returns a snapshot of every provider's health, sorted by name.
func (r *Registry) Stats() []ProviderStat {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]ProviderStat, 0, len(r.providers))
	for name, st := range r.providers {
		stat := ProviderStat{
			Provider:  name,
			Successes: st.successes,
			Failures:  st.failures,
			Circuit:   st.circuit,
		}
		if !st.openedAt.IsZero() {
			stat.OpenedAt = st.openedAt.UnixMilli()
		}
		if !st.cooldownTo.IsZero() {
			stat.CooldownTo = st.cooldownTo.UnixMilli()
		}
		if !st.lastSuccess.IsZero() {
			stat.LastSuccess = st.lastSuccess.UnixMilli()
		}
		if !st.lastFailure.IsZero() {
			stat.LastFailure = st.lastFailure.UnixMilli()
		}
		if st.latencyN > 0 {
			stat.AvgLatency = float64(st.latencySum.Milliseconds()) / float64(st.latencyN)
		}
		stats = append(stats, stat)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Provider < stats[j].Provider
	})
	return stats
}

// Run periodically decays failure counts for all providers so transient blips
// self-heal even without traffic. Blocks until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.DecayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.decay()
		}
	}
}

// decay multiplies every failure count by the decay factor.
func (r *Registry) decay() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range r.providers {
		if st.failures > 0 {
			st.failures *= r.cfg.DecayFactor
			if st.failures < 0.01 {
				st.failures = 0
			}
		}
	}
}
