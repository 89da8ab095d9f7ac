package cache

import "sync"

// RecentSet remembers the last capacity keys it has seen, evicting the oldest
// first. Used to suppress duplicate discoveries and signature lookups without
// unbounded memory. Safe for concurrent use.
type RecentSet struct {
	mu       sync.Mutex
	set      map[string]struct{}
	order    []string
	capacity int
}

// NewRecentSet creates a set that remembers at most capacity keys.
func NewRecentSet(capacity int) *RecentSet {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RecentSet{
		set:      make(map[string]struct{}, capacity),
		capacity: capacity,
	}
}

// Seen reports whether the key is in the set.
func (s *RecentSet) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[key]
	return ok
}

// Add inserts the key, evicting the oldest entry when full. Returns false if
// the key was already present.
func (s *RecentSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[key]; ok {
		return false
	}
	for len(s.set) >= s.capacity && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.set, oldest)
	}
	s.set[key] = struct{}{}
	s.order = append(s.order, key)
	return true
}

// Len returns the current number of remembered keys.
func (s *RecentSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}
