// internal/account/memory.go
package account

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Key]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[Key]*Entry),
	}
}

func copyEntry(e *Entry) *Entry {
	return &Entry{Key: e.Key, Version: e.Version, Record: e.Record.Clone()}
}

// Get returns the current entry. Returns ErrNotFound if absent.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEntry(e), nil
}

// Put stores a record unconditionally.
func (s *MemoryStore) Put(_ context.Context, key Key, record Record) (uint64, error) {
	if record == nil {
		return 0, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version := uint64(1)
	if e, ok := s.data[key]; ok {
		version = e.Version + 1
	}
	s.data[key] = &Entry{Key: key, Version: version, Record: record.Clone()}
	return version, nil
}

// Commit applies all writes or none.
func (s *MemoryStore) Commit(_ context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate versions (existing + intra-batch duplicates)
	seen := make(map[Key]struct{}, len(writes))
	for _, w := range writes {
		if w.Record == nil {
			return ErrInvalidInput
		}
		if _, dup := seen[w.Key]; dup {
			return ErrInvalidInput
		}
		seen[w.Key] = struct{}{}

		var current uint64
		if e, ok := s.data[w.Key]; ok {
			current = e.Version
		}
		if current != w.Version {
			return ErrVersionConflict
		}
	}

	// Second pass: apply
	for _, w := range writes {
		s.data[w.Key] = &Entry{Key: w.Key, Version: w.Version + 1, Record: w.Record.Clone()}
	}
	return nil
}

// Snapshot returns every entry ordered by key.
func (s *MemoryStore) Snapshot(_ context.Context) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		result = append(result, copyEntry(e))
	}
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].Key[:], result[j].Key[:]) < 0
	})
	return result, nil
}

var _ Store = (*MemoryStore)(nil)
