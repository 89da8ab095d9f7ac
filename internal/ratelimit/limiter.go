package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Rate describes a bucket shape: Refill tokens per Interval with Capacity
// burst headroom.
type Rate struct {
	Capacity float64
	Refill   float64
	Interval time.Duration
}

// Default provider rates, keyed by provider name. Providers without an entry
// fall back to DefaultRate.
var (
	DefaultRate = Rate{Capacity: 10, Refill: 10, Interval: time.Second}

	ProviderRates = map[string]Rate{
		"birdeye":       {Capacity: 1, Refill: 1, Interval: time.Second},
		"dexscreener":   {Capacity: 300, Refill: 300, Interval: time.Minute},
		"geckoterminal": {Capacity: 30, Refill: 30, Interval: time.Minute},
		"helius":        {Capacity: 100, Refill: 100, Interval: time.Second},
		"jupiter":       {Capacity: 100, Refill: 100, Interval: time.Second},
	}
)

// Limiter manages named token buckets created lazily on first use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	rates   map[string]Rate
	def     Rate
}

// NewLimiter creates a limiter with the given per-key rates. Keys without an
// explicit rate use def.
func NewLimiter(rates map[string]Rate, def Rate) *Limiter {
	if def.Capacity <= 0 {
		def = DefaultRate
	}
	if rates == nil {
		rates = map[string]Rate{}
	}
	return &Limiter{
		buckets: make(map[string]*Bucket),
		rates:   rates,
		def:     def,
	}
}

// NewProviderLimiter creates a limiter preloaded with the default provider rates.
func NewProviderLimiter() *Limiter {
	rates := make(map[string]Rate, len(ProviderRates))
	for k, v := range ProviderRates {
		rates[k] = v
	}
	return NewLimiter(rates, DefaultRate)
}

// bucket returns the bucket for a key, creating it lazily.
func (l *Limiter) bucket(key string) *Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		rate, has := l.rates[key]
		if !has {
			rate = l.def
		}
		b = NewBucket(rate.Capacity, rate.Refill, rate.Interval)
		l.buckets[key] = b
	}
	return b
}

// Acquire blocks until a token for key is available.
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	return l.bucket(key).Acquire(ctx, 1)
}

// AcquireN blocks until amount tokens for key are available.
func (l *Limiter) AcquireN(ctx context.Context, key string, amount float64) error {
	return l.bucket(key).Acquire(ctx, amount)
}

// TryAcquire debits one token for key if immediately available.
func (l *Limiter) TryAcquire(key string) bool {
	return l.bucket(key).TryAcquire(1)
}

// SetRate overrides the rate for a key. Takes effect for buckets not yet created.
func (l *Limiter) SetRate(key string, rate Rate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rates[key] = rate
}
