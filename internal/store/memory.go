package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-memory query history.
type MemoryStore struct {
	mu sync.RWMutex

	// oldest first
	records []QueryRecord

	// retention configuration
	maxHistory int           // max number of records kept
	maxAge     time.Duration // optional max age for records

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save appends a record and enforces retention.
func (s *MemoryStore) Save(_ context.Context, rec QueryRecord) (QueryRecord, error) {
	rec, err := prepare(rec, s.now())
	if err != nil {
		return QueryRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep chronological order even for back-dated records.
	i := sort.Search(len(s.records), func(i int) bool {
		return s.records[i].Timestamp.After(rec.Timestamp)
	})
	s.records = append(s.records, QueryRecord{})
	copy(s.records[i+1:], s.records[i:])
	s.records[i] = rec

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.records) > s.maxHistory {
		over := len(s.records) - s.maxHistory
		s.records = s.records[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		s.pruneLocked(s.now().Add(-s.maxAge))
	}
	return rec, nil
}

// Get returns the record with id.
func (s *MemoryStore) Get(_ context.Context, id string) (QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return QueryRecord{}, ErrNotFound
}

// List returns the newest records first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]QueryRecord, error) {
	limit = clampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]QueryRecord, 0, min(limit, len(s.records)))
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Prune drops records older than cutoff.
func (s *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(cutoff), nil
}

func (s *MemoryStore) pruneLocked(cutoff time.Time) int {
	i := 0
	for ; i < len(s.records); i++ {
		if !s.records[i].Timestamp.Before(cutoff) {
			break
		}
	}
	s.records = s.records[i:]
	return i
}

func (s *MemoryStore) Close() error { return nil }
