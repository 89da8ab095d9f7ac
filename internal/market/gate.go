package market

import (
	"context"
	"errors"
	"time"

	"solana-token-scout/internal/health"
	"solana-token-scout/internal/ratelimit"
)

// CallMetrics receives one record per attempted provider call.
type CallMetrics interface {
	RecordProviderCall(provider, result string, seconds float64)
}

// Gate funnels every outbound provider call through the rate limiter and the
// circuit breaker. One Gate is shared by all clients in the process.
type Gate struct {
	limiter *ratelimit.Limiter
	healthR *health.Registry
	metrics CallMetrics
}

// NewGate creates a call gate.
func NewGate(limiter *ratelimit.Limiter, registry *health.Registry) *Gate {
	return &Gate{limiter: limiter, healthR: registry}
}

// WithMetrics attaches a call-metrics sink and returns the gate.
func (g *Gate) WithMetrics(m CallMetrics) *Gate {
	g.metrics = m
	return g
}

// Do runs fn against the named provider: skipped with ErrUnavailable when the
// circuit is open, blocked on the provider's token bucket otherwise, and the
// outcome is recorded either way.
func (g *Gate) Do(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	if !g.healthR.Available(provider) {
		return ErrUnavailable
	}

	if err := g.limiter.Acquire(ctx, provider); err != nil {
		return err
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	g.record(provider, err, elapsed)

	if err != nil && !errors.Is(err, ErrNoData) {
		g.healthR.RecordFailure(provider, err)
		return err
	}
	// A definitive "not found" still means the provider answered.
	g.healthR.RecordSuccess(provider, elapsed)
	return err
}

func (g *Gate) record(provider string, err error, elapsed time.Duration) {
	if g.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, ErrNoData):
		result = "no_data"
	case err != nil:
		result = "error"
	}
	g.metrics.RecordProviderCall(provider, result, elapsed.Seconds())
}

// LiteMode reports whether degraded output should be flagged downstream.
func (g *Gate) LiteMode() bool {
	return g.healthR.LiteMode()
}
