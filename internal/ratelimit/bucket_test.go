package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives a bucket's lazy refill deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testBucket(capacity, refill float64, interval time.Duration) (*Bucket, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBucket(capacity, refill, interval)
	b.now = clock.now
	b.lastRefill = clock.t
	return b, clock
}

func TestBucketStartsFull(t *testing.T) {
	b, _ := testBucket(5, 5, time.Second)

	for i := 0; i < 5; i++ {
		if !b.TryAcquire(1) {
			t.Fatalf("acquire %d failed on a full bucket", i+1)
		}
	}
	if b.TryAcquire(1) {
		t.Fatal("acquire succeeded on an empty bucket")
	}
}

func TestBucketNeverExceedsCapacity(t *testing.T) {
	b, clock := testBucket(5, 5, time.Second)

	clock.advance(time.Hour)
	if got := b.Tokens(); got != 5 {
		t.Fatalf("tokens = %.1f after a long idle period, want capacity 5", got)
	}
}

func TestBucketRefillsWholeIntervals(t *testing.T) {
	b, clock := testBucket(10, 3, time.Second)

	for i := 0; i < 10; i++ {
		b.TryAcquire(1)
	}

	clock.advance(900 * time.Millisecond)
	if b.TryAcquire(1) {
		t.Fatal("partial interval must not credit tokens")
	}

	clock.advance(100 * time.Millisecond)
	if got := b.Tokens(); got != 3 {
		t.Fatalf("tokens = %.1f after one interval, want 3", got)
	}

	clock.advance(2 * time.Second)
	if got := b.Tokens(); got != 9 {
		t.Fatalf("tokens = %.1f after three intervals total, want 9", got)
	}
}

func TestBucketBoundsAcquiresPerWindow(t *testing.T) {
	// A drained C=4 R=2 bucket yields at most R acquires per interval.
	b, clock := testBucket(4, 2, time.Second)

	granted := 0
	for i := 0; i < 10; i++ {
		if b.TryAcquire(1) {
			granted++
		}
	}
	if granted != 4 {
		t.Fatalf("granted %d from a full bucket, want capacity 4", granted)
	}

	clock.advance(time.Second)
	granted = 0
	for i := 0; i < 10; i++ {
		if b.TryAcquire(1) {
			granted++
		}
	}
	if granted != 2 {
		t.Fatalf("granted %d in one refill window, want 2", granted)
	}
}

func TestAcquireOverCapacityFails(t *testing.T) {
	b, _ := testBucket(3, 3, time.Second)
	if err := b.Acquire(context.Background(), 4); err == nil {
		t.Fatal("acquiring more than capacity should fail instead of blocking forever")
	}
}

func TestAcquireBlocksUntilRefill(t *testing.T) {
	b, clock := testBucket(1, 1, time.Second)
	b.sleep = func(ctx context.Context, d time.Duration) error {
		clock.advance(d)
		return nil
	}

	if err := b.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	start := clock.t
	if err := b.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if waited := clock.t.Sub(start); waited < time.Second {
		t.Fatalf("second acquire waited %v, want at least one interval", waited)
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	b, _ := testBucket(1, 1, time.Hour)
	b.TryAcquire(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Acquire(ctx, 1); err != context.Canceled {
		t.Fatalf("acquire on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := NewLimiter(map[string]Rate{
		"small": {Capacity: 1, Refill: 1, Interval: time.Hour},
	}, Rate{Capacity: 100, Refill: 100, Interval: time.Second})

	if !l.TryAcquire("small") {
		t.Fatal("first acquire on small key failed")
	}
	if l.TryAcquire("small") {
		t.Fatal("small key should be drained")
	}
	if !l.TryAcquire("other") {
		t.Fatal("draining one key must not affect another")
	}
}

func TestProviderLimiterBirdeyeRate(t *testing.T) {
	l := NewProviderLimiter()

	if !l.TryAcquire("birdeye") {
		t.Fatal("first birdeye acquire failed")
	}
	if l.TryAcquire("birdeye") {
		t.Fatal("birdeye allows one call per second")
	}
}
