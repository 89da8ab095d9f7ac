// Package ratelimit implements token-bucket rate limiting for outbound
// provider calls and notification sends.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Bucket is a token bucket with capacity C refilled by R tokens every
// interval I. Refill is lazy: elapsed whole intervals are credited on each
// acquire, so a starved bucket can never deadlock.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refill     float64 // tokens added per interval
	interval   time.Duration
	lastRefill time.Time
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewBucket creates a full bucket.
func NewBucket(capacity, refill float64, interval time.Duration) *Bucket {
	if capacity <= 0 {
		capacity = 1
	}
	if refill <= 0 {
		refill = capacity
	}
	if interval <= 0 {
		interval = time.Second
	}
	b := &Bucket{
		capacity: capacity,
		tokens:   capacity,
		refill:   refill,
		interval: interval,
		now:      time.Now,
	}
	b.lastRefill = b.now()
	b.sleep = sleepCtx
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// refillLocked credits elapsed whole intervals. Caller must hold b.mu.
func (b *Bucket) refillLocked() {
	elapsed := b.now().Sub(b.lastRefill)
	intervals := int64(elapsed / b.interval)
	if intervals <= 0 {
		return
	}
	b.tokens += b.refill * float64(intervals)
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * b.interval)
}

// Acquire blocks until amount tokens are available, then debits them.
// Returns early only when ctx is cancelled.
func (b *Bucket) Acquire(ctx context.Context, amount float64) error {
	if amount <= 0 {
		amount = 1
	}
	if amount > b.capacity {
		return fmt.Errorf("acquire %.1f exceeds bucket capacity %.1f", amount, b.capacity)
	}

	for {
		b.mu.Lock()
		b.refillLocked()
		if b.tokens >= amount {
			b.tokens -= amount
			b.mu.Unlock()
			return nil
		}

		// Wait until enough tokens accrue, plus small random jitter so
		// synchronized callers spread out.
		deficit := amount - b.tokens
		perToken := float64(b.interval) / b.refill
		wait := time.Duration(deficit * perToken)
		b.mu.Unlock()

		wait += time.Duration(rand.Int63n(int64(50 * time.Millisecond)))
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire debits amount tokens if immediately available.
func (b *Bucket) TryAcquire(amount float64) bool {
	if amount <= 0 {
		amount = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens >= amount {
		b.tokens -= amount
		return true
	}
	return false
}

// Tokens returns the current token count after a lazy refill.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}
