package settings

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[uuid.UUID]map[string]string)}
}

// GetSetting returns a value or ErrNotFound.
func (s *MemoryStore) GetSetting(_ context.Context, tenantID uuid.UUID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[tenantID][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetSetting stores a value.
func (s *MemoryStore) SetSetting(_ context.Context, tenantID uuid.UUID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[tenantID] == nil {
		s.data[tenantID] = make(map[string]string)
	}
	s.data[tenantID][key] = value
	return nil
}

// DeleteSetting removes a key.
func (s *MemoryStore) DeleteSetting(_ context.Context, tenantID uuid.UUID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[tenantID], key)
	return nil
}

// ListSettings returns a copy of a tenant's settings.
func (s *MemoryStore) ListSettings(_ context.Context, tenantID uuid.UUID) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data[tenantID]))
	maps.Copy(out, s.data[tenantID])
	return out, nil
}
