package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestTTLExpiry(t *testing.T) {
	c := NewTTL[int](10, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	now = now.Add(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry should expire after the ttl")
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d after expired read, want 0", c.Len())
	}
}

func TestTTLCapacityEvictsOldest(t *testing.T) {
	c := NewTTL[int](3, time.Hour)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("d", 4)

	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry should be evicted at capacity")
	}
	for i, key := range []string{"b", "c", "d"} {
		if v, ok := c.Get(key); !ok || v != i+2 {
			t.Fatalf("Get(%s) = %d, %v; want %d, true", key, v, ok, i+2)
		}
	}
}

func TestTTLReSetAfterExpiryKeepsFreshEntry(t *testing.T) {
	c := NewTTL[int](2, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1)

	// Expire a, read it out, then store it again alongside b. The fresh
	// a is now younger than b, so filling past capacity must evict b.
	now = now.Add(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry should expire after the ttl")
	}
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Fatalf("Get(a) = %d, %v; want 10, true (fresh entry evicted via stale order slot)", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("b is the oldest live entry and should be the one evicted")
	}
}

func TestTTLOverwriteDoesNotEvict(t *testing.T) {
	c := NewTTL[int](2, time.Hour)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10) // update in place

	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Fatalf("Get(a) = %d, %v; want 10, true", v, ok)
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("overwriting an existing key must not evict others")
	}
}

func TestTTLCachesNilPointers(t *testing.T) {
	// Negative caching: a stored nil pointer is a hit, not a miss.
	c := NewTTL[*int](10, time.Hour)

	c.Set("missing", nil)
	v, ok := c.Get("missing")
	if !ok {
		t.Fatal("stored nil should be a cache hit")
	}
	if v != nil {
		t.Fatalf("Get = %v, want nil", v)
	}
}

func TestRecentSetRemembers(t *testing.T) {
	s := NewRecentSet(10)

	if !s.Add("x") {
		t.Fatal("first Add should return true")
	}
	if s.Add("x") {
		t.Fatal("second Add of the same key should return false")
	}
	if !s.Seen("x") {
		t.Fatal("Seen should report a remembered key")
	}
	if s.Seen("y") {
		t.Fatal("Seen should not report an unknown key")
	}
}

func TestRecentSetEvictsOldestFirst(t *testing.T) {
	s := NewRecentSet(3)

	for i := 0; i < 4; i++ {
		s.Add(fmt.Sprintf("k%d", i))
	}

	if s.Seen("k0") {
		t.Fatal("oldest key should be evicted at capacity")
	}
	for i := 1; i < 4; i++ {
		if !s.Seen(fmt.Sprintf("k%d", i)) {
			t.Fatalf("k%d should still be remembered", i)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want capacity 3", s.Len())
	}

	// An evicted key can be re-added.
	if !s.Add("k0") {
		t.Fatal("re-adding an evicted key should return true")
	}
}
