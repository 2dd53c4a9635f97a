package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps entries in memory. It implements Writer, BatchWriter
// and Querier.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends e.
func (s *MemoryStorage) Store(_ context.Context, e Entry) error {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

// StoreBatch appends entries in order.
func (s *MemoryStorage) StoreBatch(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	s.entries = append(s.entries, entries...)
	s.mu.Unlock()
	return nil
}

// Query returns entries matching c, newest first.
func (s *MemoryStorage) Query(_ context.Context, c Criteria) ([]Entry, error) {
	s.mu.RLock()
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if matches(e, c) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Entry) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if c.Offset > 0 {
		if c.Offset >= len(out) {
			return []Entry{}, nil
		}
		out = out[c.Offset:]
	}
	if c.Limit > 0 && c.Limit < len(out) {
		out = out[:c.Limit]
	}
	return out, nil
}

// Len reports how many entries are stored.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func matches(e Entry, c Criteria) bool {
	if c.TenantID != nil && (e.TenantID == nil || *e.TenantID != *c.TenantID) {
		return false
	}
	if c.UserID != nil && (e.UserID == nil || *e.UserID != *c.UserID) {
		return false
	}
	if len(c.Levels) > 0 && !slices.Contains(c.Levels, e.Level) {
		return false
	}
	if c.Action != "" && e.Action != c.Action {
		return false
	}
	if !c.Since.IsZero() && e.CreatedAt.Before(c.Since) {
		return false
	}
	return true
}
