package health

import (
	"errors"
	"testing"
	"time"
)

var errProbe = errors.New("upstream unavailable")

func testRegistry() *Registry {
	return NewRegistry(Config{
		MinSamples:    15,
		FailureRatio:  0.6,
		Cooldown:      5 * time.Minute,
		DecayInterval: 2 * time.Minute,
		DecayFactor:   0.8,
	}, nil)
}

func record(r *Registry, provider string, successes, failures int) {
	for i := 0; i < successes; i++ {
		r.RecordSuccess(provider, 10*time.Millisecond)
	}
	for i := 0; i < failures; i++ {
		r.RecordFailure(provider, errProbe)
	}
}

func TestCircuitOpensAboveRatio(t *testing.T) {
	r := testRegistry()

	record(r, "dexscreener", 7, 13) // 13/20 = 0.65

	if r.Available("dexscreener") {
		t.Fatal("circuit should be open at 65% failures over 20 samples")
	}
	if !r.LiteMode() {
		t.Fatal("opening a circuit should raise lite mode")
	}
}

func TestCircuitStaysClosedBelowRatio(t *testing.T) {
	r := testRegistry()

	record(r, "dexscreener", 9, 11) // 11/20 = 0.55

	if !r.Available("dexscreener") {
		t.Fatal("circuit should stay closed below the failure ratio")
	}
	if r.LiteMode() {
		t.Fatal("lite mode should stay off while all circuits are closed")
	}
}

func TestCircuitStaysClosedWithFewSamples(t *testing.T) {
	r := testRegistry()

	record(r, "birdeye", 0, 10) // 100% failures but only 10 samples

	if !r.Available("birdeye") {
		t.Fatal("circuit must not open before MinSamples calls")
	}
}

func TestHalfOpenProbeClosesAndHalvesFailures(t *testing.T) {
	r := testRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	record(r, "gecko", 7, 13)
	if r.Available("gecko") {
		t.Fatal("circuit should be open")
	}

	// Still inside the cooldown window.
	now = now.Add(4 * time.Minute)
	if r.Available("gecko") {
		t.Fatal("circuit should stay open inside the cooldown")
	}

	// Past the cooldown a single probe is let through.
	now = now.Add(2 * time.Minute)
	if !r.Available("gecko") {
		t.Fatal("circuit should half-open after the cooldown")
	}

	r.RecordSuccess("gecko", 5*time.Millisecond)

	stats := r.Stats()
	if len(stats) != 1 {
		t.Fatalf("got %d provider stats, want 1", len(stats))
	}
	if stats[0].Circuit != CircuitClosed {
		t.Fatalf("circuit = %s after successful probe, want CLOSED", stats[0].Circuit)
	}
	if stats[0].Failures != 6.5 {
		t.Fatalf("failures = %.1f after probe, want 6.5 (halved from 13)", stats[0].Failures)
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	r := testRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	record(r, "gecko", 7, 13)

	now = now.Add(6 * time.Minute)
	if !r.Available("gecko") {
		t.Fatal("circuit should half-open after the cooldown")
	}

	// Concurrent callers stay blocked while the probe is in flight.
	if r.Available("gecko") {
		t.Fatal("only one probe may be in flight at a time")
	}
	if r.Available("gecko") {
		t.Fatal("repeated callers must not slip through the half-open slot")
	}

	r.RecordSuccess("gecko", 5*time.Millisecond)
	if !r.Available("gecko") {
		t.Fatal("circuit should be closed after a successful probe")
	}
}

func TestFailedProbeRearmsCooldown(t *testing.T) {
	r := testRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	record(r, "gecko", 7, 13)

	now = now.Add(6 * time.Minute)
	if !r.Available("gecko") {
		t.Fatal("circuit should half-open after the cooldown")
	}
	r.RecordFailure("gecko", errProbe)

	// The failed probe pushed the cooldown another 5 minutes out.
	now = now.Add(time.Minute)
	if r.Available("gecko") {
		t.Fatal("circuit should be re-armed after a failed probe")
	}
}

func TestDecayRelaxesFailures(t *testing.T) {
	r := testRegistry()

	record(r, "jupiter", 10, 4)
	r.decay()

	stats := r.Stats()
	if got := stats[0].Failures; got != 3.2 {
		t.Fatalf("failures = %.2f after one decay tick, want 3.2", got)
	}

	// Failure counts drain to zero rather than lingering forever.
	for i := 0; i < 40; i++ {
		r.decay()
	}
	if got := r.Stats()[0].Failures; got != 0 {
		t.Fatalf("failures = %.4f after long decay, want 0", got)
	}
}

func TestUnknownProviderIsAvailable(t *testing.T) {
	r := testRegistry()
	if !r.Available("never-seen") {
		t.Fatal("a provider with no history should be available")
	}
}
