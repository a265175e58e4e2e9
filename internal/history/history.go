// Package history keeps a bounded per-user log of validation outcomes. Each
// user gets an independently locked fixed-capacity ring, so appends for one
// user are serialized while different users never contend.
package history

import (
	"sync"
	"time"
)

// Entry is one recorded validation outcome. Entries are value copies; the
// store never hands out references to its internal state.
type Entry struct {
	At     time.Time
	Status string
	Level  string
	Score  float64
}

// Store is a concurrent map from user ID to a fixed-capacity ring buffer.
type Store struct {
	users    sync.Map // map[string]*ring
	capacity int
}

// NewStore creates a Store whose per-user rings hold at most capacity
// entries, evicting the oldest.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{capacity: capacity}
}

type ring struct {
	mu      sync.Mutex
	entries []Entry
	head    int // index of the oldest entry
	size    int
}

func (s *Store) ringFor(userID string) *ring {
	if v, ok := s.users.Load(userID); ok {
		return v.(*ring)
	}
	v, _ := s.users.LoadOrStore(userID, &ring{entries: make([]Entry, s.capacity)})
	return v.(*ring)
}

// Append records an entry for the user, evicting the oldest once the ring
// is full.
func (s *Store) Append(userID string, e Entry) {
	r := s.ringFor(userID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.entries) {
		r.entries[(r.head+r.size)%len(r.entries)] = e
		r.size++
		return
	}
	r.entries[r.head] = e
	r.head = (r.head + 1) % len(r.entries)
}

// Len returns the number of stored entries for the user.
func (s *Store) Len(userID string) int {
	v, ok := s.users.Load(userID)
	if !ok {
		return 0
	}
	r := v.(*ring)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// CountSince counts entries recorded at or after cutoff.
func (s *Store) CountSince(userID string, cutoff time.Time) int {
	v, ok := s.users.Load(userID)
	if !ok {
		return 0
	}
	r := v.(*ring)
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for i := 0; i < r.size; i++ {
		e := r.entries[(r.head+i)%len(r.entries)]
		if !e.At.Before(cutoff) {
			count++
		}
	}
	return count
}

// CountRecent counts, among the user's most recent n entries, those matching
// the predicate.
func (s *Store) CountRecent(userID string, n int, pred func(Entry) bool) int {
	v, ok := s.users.Load(userID)
	if !ok {
		return 0
	}
	r := v.(*ring)
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.size {
		n = r.size
	}
	count := 0
	for i := r.size - n; i < r.size; i++ {
		if pred(r.entries[(r.head+i)%len(r.entries)]) {
			count++
		}
	}
	return count
}

// Snapshot returns a copy of the user's entries, oldest first.
func (s *Store) Snapshot(userID string) []Entry {
	v, ok := s.users.Load(userID)
	if !ok {
		return nil
	}
	r := v.(*ring)
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.head+i)%len(r.entries)]
	}
	return out
}
