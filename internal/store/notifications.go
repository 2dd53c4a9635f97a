package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/notifications"
	"github.com/dmitrymomot/clinickit/pkg/scope"
)

var notificationColumns = []string{
	"id", "tenant_id", "recipient_id", "title", "message", "type", "channel", "data",
	"is_read", "read_at", "scheduled_for", "sent_at", "created_at",
	"attempts", "last_error", "failed_at",
}

func scanNotification(r rowScanner) (notifications.Notification, error) {
	var (
		n    notifications.Notification
		data []byte
	)
	err := r.Scan(&n.ID, &n.TenantID, &n.RecipientID, &n.Title, &n.Message, &n.Type, &n.Channel, &data,
		&n.IsRead, &n.ReadAt, &n.ScheduledFor, &n.SentAt, &n.CreatedAt,
		&n.Attempts, &n.LastError, &n.FailedAt)
	if err != nil {
		return n, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return n, err
		}
	}
	return n, nil
}

// NotificationStore implements notifications.Storage.
type NotificationStore struct {
	db    DB
	table scope.Table
}

// NewNotificationStore creates a NotificationStore.
func NewNotificationStore(db DB) *NotificationStore {
	return &NotificationStore{db: db, table: scope.On("notifications", scope.NoSoftDelete())}
}

func (s *NotificationStore) forTenant(id uuid.UUID) scope.Table {
	return s.table.With(scope.ForTenant(id))
}

// Create inserts n.
func (s *NotificationStore) Create(ctx context.Context, n notifications.Notification) error {
	var data any
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return errors.Join(notifications.ErrInvalidNotification, err)
		}
		data = string(raw)
	}
	b, err := s.table.Insert(ctx, map[string]any{
		"id": n.ID, scope.ColTenantID: n.TenantID, "recipient_id": n.RecipientID,
		"title": n.Title, "message": n.Message, "type": string(n.Type), "channel": string(n.Channel),
		"data": sq.Expr("?::jsonb", data), "is_read": n.IsRead, "read_at": n.ReadAt,
		"scheduled_for": n.ScheduledFor, "sent_at": n.SentAt, "created_at": n.CreatedAt,
	})
	if err != nil {
		return err
	}
	_, err = exec(ctx, s.db, b)
	return err
}

// Get returns a notification of a tenant.
func (s *NotificationStore) Get(ctx context.Context, tenantID, id uuid.UUID) (notifications.Notification, error) {
	b, err := s.forTenant(tenantID).Select(ctx, notificationColumns...)
	if err != nil {
		return notifications.Notification{}, err
	}
	n, err := queryOne(ctx, s.db, b.Where(sq.Eq{"id": id}), scanNotification)
	if errors.Is(err, ErrNotFound) {
		return n, notifications.ErrNotificationNotFound
	}
	return n, err
}

// List returns a tenant's notifications matching f, newest first.
func (s *NotificationStore) List(ctx context.Context, tenantID uuid.UUID, f notifications.Filter) ([]notifications.Notification, error) {
	b, err := s.forTenant(tenantID).Select(ctx, notificationColumns...)
	if err != nil {
		return nil, err
	}
	if f.RecipientID != uuid.Nil {
		b = b.Where(sq.Eq{"recipient_id": f.RecipientID})
	}
	if f.Read != nil {
		b = b.Where(sq.Eq{"is_read": *f.Read})
	}
	if f.Channel != "" {
		b = b.Where(sq.Eq{"channel": string(f.Channel)})
	}
	return queryAll(ctx, s.db, paginate(b.OrderBy("created_at DESC"), f.Limit, f.Offset), scanNotification)
}

// CountUnread counts unread notifications of a recipient.
func (s *NotificationStore) CountUnread(ctx context.Context, tenantID, recipientID uuid.UUID) (int64, error) {
	b, err := s.forTenant(tenantID).Count(ctx)
	if err != nil {
		return 0, err
	}
	return queryInt(ctx, s.db, b.Where(sq.Eq{"recipient_id": recipientID, "is_read": false}))
}

// MarkRead flags unread notifications as read and returns how many
// changed.
func (s *NotificationStore) MarkRead(ctx context.Context, tenantID uuid.UUID, recipientID *uuid.UUID, at time.Time, ids ...uuid.UUID) (int64, error) {
	b, err := s.forTenant(tenantID).Update(ctx)
	if err != nil {
		return 0, err
	}
	b = b.Set("is_read", true).Set("read_at", at).Where(sq.Eq{"is_read": false})
	if recipientID != nil {
		b = b.Where(sq.Eq{"recipient_id": *recipientID})
	}
	if len(ids) > 0 {
		b = b.Where(sq.Eq{"id": ids})
	}
	return exec(ctx, s.db, b)
}

// Pending scans every tenant; it runs from the background dispatcher.
func (s *NotificationStore) Pending(ctx context.Context, now time.Time, limit int) ([]notifications.Notification, error) {
	b, err := s.table.Select(scope.AsSuperuser(ctx), notificationColumns...)
	if err != nil {
		return nil, err
	}
	b = b.Where(sq.Eq{"sent_at": nil, "failed_at": nil}).
		Where(sq.LtOrEq{"scheduled_for": now}).
		OrderBy("scheduled_for")
	return queryAll(ctx, s.db, paginate(b, limit, 0), scanNotification)
}

// MarkSent stamps a delivered notification.
func (s *NotificationStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	b, err := s.table.Update(scope.AsSuperuser(ctx))
	if err != nil {
		return err
	}
	err = execOne(ctx, s.db, b.Set("sent_at", at).Where(sq.Eq{"id": id}))
	if errors.Is(err, ErrNotFound) {
		return notifications.ErrNotificationNotFound
	}
	return err
}

// MarkFailed records a failed attempt and either reschedules or abandons the
// notification.
func (s *NotificationStore) MarkFailed(ctx context.Context, id uuid.UUID, f notifications.Failure, at time.Time) error {
	b, err := s.table.Update(scope.AsSuperuser(ctx))
	if err != nil {
		return err
	}
	b = b.Set("attempts", f.Attempts).Set("last_error", f.Error).Set("updated_at", at)
	if f.RetryAt != nil {
		b = b.Set("scheduled_for", *f.RetryAt)
	} else {
		b = b.Set("failed_at", at)
	}
	err = execOne(ctx, s.db, b.Where(sq.Eq{"id": id}))
	if errors.Is(err, ErrNotFound) {
		return notifications.ErrNotificationNotFound
	}
	return err
}
