// Package intake drains freshly discovered assets: it claims batches of
// discovered rows, enriches them, scores them, and promotes or rejects
// them.
package intake

import (
	"sync"
	"time"
)

const (
	defaultMinBatch   = 5
	defaultMaxBatch   = 16
	defaultWindowSize = 50

	// Hysteresis around the target so the size does not oscillate.
	growBelowFraction   = 0.7
	shrinkAboveFraction = 1.1
)

// AdaptiveBatch sizes intake batches from a rolling window of recent
// cycle durations: comfortably under the target grows the batch,
// comfortably over shrinks it. Safe for concurrent use.
type AdaptiveBatch struct {
	mu sync.Mutex

	size    int
	min     int
	max     int
	target  time.Duration
	window  []time.Duration
	maxKeep int
}

func NewAdaptiveBatch(target time.Duration) *AdaptiveBatch {
	return &AdaptiveBatch{
		size:    defaultMinBatch,
		min:     defaultMinBatch,
		max:     defaultMaxBatch,
		target:  target,
		maxKeep: defaultWindowSize,
	}
}

// Size returns the current batch size.
func (a *AdaptiveBatch) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// Observe records one cycle duration and adjusts the size.
func (a *AdaptiveBatch) Observe(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.window = append(a.window, d)
	if len(a.window) > a.maxKeep {
		a.window = a.window[1:]
	}

	avg := a.averageLocked()
	switch {
	case avg < time.Duration(float64(a.target)*growBelowFraction):
		if a.size < a.max {
			a.size++
		}
	case avg > time.Duration(float64(a.target)*shrinkAboveFraction):
		if a.size > a.min {
			a.size--
		}
	}
}

func (a *AdaptiveBatch) averageLocked() time.Duration {
	if len(a.window) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range a.window {
		total += d
	}
	return total / time.Duration(len(a.window))
}
