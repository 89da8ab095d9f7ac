package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

const (
	backoffBase = 30 * time.Second
	backoffMax  = 5 * time.Minute
)

// Target is one (channel, segment) delivery pair.
type Target struct {
	ChannelID int64
	Segment   Segment
}

// Metrics receives dispatch outcomes; nil disables reporting.
type Metrics interface {
	RecordDispatch(segment, outcome string)
}

// Scheduler drives the delivery loop: one ticker per target, an
// in-flight set so a slow tick is skipped rather than doubled, and
// per-target exponential backoff after failures.
type Scheduler struct {
	builder  *Builder
	notifier Notifier
	records  storage.DispatchStore
	tokens   storage.TokenStore
	metrics  Metrics
	logger   *log.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
	failures map[string]int
	retryAt  map[string]time.Time
}

func NewScheduler(builder *Builder, notifier Notifier, records storage.DispatchStore, tokens storage.TokenStore, metrics Metrics, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.Writer(), "[dispatch] ", log.LstdFlags)
	}
	return &Scheduler{
		builder:  builder,
		notifier: notifier,
		records:  records,
		tokens:   tokens,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]bool),
		failures: make(map[string]int),
		retryAt:  make(map[string]time.Time),
	}
}

// BackoffState is the failure view of one target, for diagnostics.
type BackoffState struct {
	Target    string `json:"target"`
	Failures  int    `json:"failures"`
	RetryAtMs int64  `json:"retry_at_ms,omitempty"`
}

// BackoffStates reports every target currently in backoff.
func (s *Scheduler) BackoffStates() []BackoffState {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make([]BackoffState, 0, len(s.failures))
	for key, n := range s.failures {
		st := BackoffState{Target: key, Failures: n}
		if at, ok := s.retryAt[key]; ok {
			st.RetryAtMs = at.UnixMilli()
		}
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Target < states[j].Target })
	return states
}

// Run starts one delivery loop per target and blocks until the context
// ends.
func (s *Scheduler) Run(ctx context.Context, targets []Target) {
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			s.loop(ctx, t)
		}(target)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, target Target) {
	ticker := time.NewTicker(target.Segment.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, target)
		}
	}
}

// Tick performs one delivery attempt for a target. Skipped while a
// previous tick for the same pair is still running or the pair is in
// backoff.
func (s *Scheduler) Tick(ctx context.Context, target Target) {
	key := targetKey(target)
	if !s.begin(key) {
		return
	}
	defer s.finish(key)

	if err := s.deliver(ctx, target); err != nil {
		n := s.recordFailure(key)
		s.logger.Printf("deliver %s: %v (failure #%d)", key, err, n)
		s.record(target.Segment.Name, "error")
		return
	}
	s.clearFailures(key)
}

func (s *Scheduler) deliver(ctx context.Context, target Target) error {
	text, mints, err := s.builder.Build(ctx, target.Segment)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	messageID, err := s.sendOrEdit(ctx, target, text)
	if err != nil {
		return err
	}

	nowMs := s.now().UnixMilli()
	record := &domain.DispatchRecord{
		ChannelID: target.ChannelID,
		Segment:   target.Segment.Name,
		MessageID: messageID,
		UpdatedAt: nowMs,
	}
	if err := s.records.Upsert(ctx, record); err != nil {
		return fmt.Errorf("record message: %w", err)
	}

	if len(mints) > 0 {
		if err := s.tokens.MarkServed(ctx, mints, nowMs); err != nil {
			s.logger.Printf("mark served: %v", err)
		}
	}
	s.record(target.Segment.Name, "delivered")
	return nil
}

// sendOrEdit edits the recorded message when one exists, sending fresh
// when it is gone. "Not modified" is success: the content simply has
// not changed since the last tick.
func (s *Scheduler) sendOrEdit(ctx context.Context, target Target, text string) (int64, error) {
	prior, err := s.records.Get(ctx, target.ChannelID, target.Segment.Name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("load record: %w", err)
	}

	if prior != nil {
		err := s.notifier.Edit(ctx, target.ChannelID, prior.MessageID, text)
		switch {
		case err == nil, errors.Is(err, ErrNotModified):
			return prior.MessageID, nil
		case errors.Is(err, ErrMessageGone):
			// fall through to a fresh send
		default:
			return 0, fmt.Errorf("edit: %w", err)
		}
	}

	messageID, err := s.notifier.Send(ctx, target.ChannelID, text)
	if err != nil {
		return 0, fmt.Errorf("send: %w", err)
	}
	return messageID, nil
}

// begin claims the pair for this tick. Returns false when the previous
// tick is still in flight or the pair is backing off.
func (s *Scheduler) begin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight[key] {
		return false
	}
	if until, ok := s.retryAt[key]; ok && s.now().Before(until) {
		return false
	}
	s.inFlight[key] = true
	return true
}

func (s *Scheduler) finish(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

func (s *Scheduler) recordFailure(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[key]++
	n := s.failures[key]

	// Clamp the shift: past a handful of failures the doubling is capped
	// anyway, and a large n would overflow the shift.
	backoff := backoffMax
	if n <= 4 {
		backoff = backoffBase << (n - 1)
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
	s.retryAt[key] = s.now().Add(backoff)
	return n
}

func (s *Scheduler) clearFailures(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, key)
	delete(s.retryAt, key)
}

func (s *Scheduler) record(segment, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordDispatch(segment, outcome)
	}
}

func targetKey(t Target) string {
	return fmt.Sprintf("%d/%s", t.ChannelID, t.Segment.Name)
}
