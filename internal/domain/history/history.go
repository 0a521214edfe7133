// Package history implements the bounded Flow Record ring buffer (spec.md
// §4.3): the Proxy Engine commits a Flow Record per completed request, and
// UIs poll get_new_entries(last_id) instead of rescanning the whole table.
package history

import (
	"sync"

	"github.com/sentinel-intercept/proxy/internal/domain/flow"
)

// Store is a bounded FIFO of Flow Records. On append, if the store is at
// capacity, the oldest entry is evicted before the new one is appended.
type Store struct {
	mu       sync.RWMutex
	entries  []*flow.Record
	capacity int
	nextID   int64
}

// New creates a Store bounded to capacity entries. A non-positive capacity
// is treated as 1 so the store is never unbounded by accident.
func New(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{capacity: capacity}
}

// Append assigns the next id to rec, evicts the oldest entry if the store
// is full, and appends rec. It returns the assigned id.
func (s *Store) Append(rec *flow.Record) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID

	if len(s.entries) >= s.capacity {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, rec)
	return rec.ID
}

// GetNewEntries returns every entry whose id exceeds lastID, oldest first.
// A UI can poll repeatedly, passing back the highest id it has already
// seen, without rescanning history from the start.
func (s *Store) GetNewEntries(lastID int64) []*flow.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// entries is sorted by id since ids are monotonically assigned and
	// eviction only removes from the front.
	idx := len(s.entries)
	for i, e := range s.entries {
		if e.ID > lastID {
			idx = i
			break
		}
	}
	out := make([]*flow.Record, len(s.entries)-idx)
	copy(out, s.entries[idx:])
	return out
}

// All returns a snapshot of every entry currently retained.
func (s *Store) All() []*flow.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*flow.Record, len(s.entries))
	copy(out, s.entries)
	return out
}

// Get returns the entry with the given id, if still retained.
func (s *Store) Get(id int64) (*flow.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Len returns the number of entries currently retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
