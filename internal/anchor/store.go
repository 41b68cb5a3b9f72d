package anchor

import (
	"context"
	"sync"
)

// RecordStore persists anchor records. Records are append-only; duplicates
// for the same hash (from overlapping scheduler runs) are acceptable
// redundancy, never corruption.
type RecordStore interface {
	// Save persists a record. Records are immutable once saved.
	Save(ctx context.Context, r *Record) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)

	// LastForMethod returns the most recent record for a given method,
	// or nil if that method has never anchored.
	LastForMethod(ctx context.Context, m Method) (*Record, error)
}

// MemoryStore is an in-memory RecordStore for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements RecordStore.
func (s *MemoryStore) Save(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// Recent implements RecordStore.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit > n {
		limit = n
	}
	out := make([]*Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// LastForMethod implements RecordStore.
func (s *MemoryStore) LastForMethod(_ context.Context, m Method) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Method == m {
			return s.records[i], nil
		}
	}
	return nil, nil
}
