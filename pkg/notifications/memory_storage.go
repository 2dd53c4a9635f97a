package notifications

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage keeps notifications in memory. Suitable for development
// and tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Notification
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[uuid.UUID]*Notification)}
}

// Create stores n.
func (s *MemoryStorage) Create(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[n.ID] = &n
	return nil
}

// Get returns a notification of a tenant.
func (s *MemoryStorage) Get(_ context.Context, tenantID, id uuid.UUID) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.items[id]
	if !ok || n.TenantID != tenantID {
		return Notification{}, ErrNotificationNotFound
	}
	return *n, nil
}

// List returns a tenant's notifications matching f, newest first.
func (s *MemoryStorage) List(_ context.Context, tenantID uuid.UUID, f Filter) ([]Notification, error) {
	s.mu.RLock()
	var out []Notification
	for _, n := range s.items {
		if n.TenantID != tenantID {
			continue
		}
		if f.RecipientID != uuid.Nil && n.RecipientID != f.RecipientID {
			continue
		}
		if f.Read != nil && n.IsRead != *f.Read {
			continue
		}
		if f.Channel != "" && n.Channel != f.Channel {
			continue
		}
		out = append(out, *n)
	}
	s.mu.RUnlock()

	// newest first
	slices.SortFunc(out, func(a, b Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, f.Offset, f.Limit), nil
}

// CountUnread counts unread notifications of a recipient.
func (s *MemoryStorage) CountUnread(_ context.Context, tenantID, recipientID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, item := range s.items {
		if item.TenantID == tenantID && item.RecipientID == recipientID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

// MarkRead flags unread notifications as read.
func (s *MemoryStorage) MarkRead(_ context.Context, tenantID uuid.UUID, recipientID *uuid.UUID, at time.Time, ids ...uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for _, n := range s.items {
		if n.TenantID != tenantID || n.IsRead {
			continue
		}
		if recipientID != nil && n.RecipientID != *recipientID {
			continue
		}
		if len(ids) > 0 && !slices.Contains(ids, n.ID) {
			continue
		}
		n.IsRead = true
		n.ReadAt = &at
		changed++
	}
	return changed, nil
}

// Pending returns due notifications of every tenant, earliest first.
func (s *MemoryStorage) Pending(_ context.Context, now time.Time, limit int) ([]Notification, error) {
	s.mu.RLock()
	var out []Notification
	for _, n := range s.items {
		if n.Due(now) {
			out = append(out, *n)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Notification) int { return a.ScheduledFor.Compare(*b.ScheduledFor) })
	return paginate(out, 0, limit), nil
}

// MarkSent stamps a delivered notification.
func (s *MemoryStorage) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return ErrNotificationNotFound
	}
	n.SentAt = &at
	return nil
}

// MarkFailed records a failed delivery.
func (s *MemoryStorage) MarkFailed(_ context.Context, id uuid.UUID, f Failure, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return ErrNotificationNotFound
	}
	n.Attempts = f.Attempts
	n.LastError = f.Error
	if f.RetryAt != nil {
		retry := *f.RetryAt
		n.ScheduledFor = &retry
	} else {
		n.FailedAt = &at
	}
	return nil
}

func paginate(items []Notification, offset, limit int) []Notification {
	offset = max(offset, 0)
	if offset >= len(items) {
		return []Notification{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
