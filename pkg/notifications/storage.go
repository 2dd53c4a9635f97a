package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows a tenant's notifications. Zero fields match everything.
type Filter struct {
	RecipientID uuid.UUID
	Read        *bool
	Channel     Channel
	Limit       int
	Offset      int
}

// Failure describes an unsuccessful delivery attempt.
type Failure struct {
	Attempts int
	Error    string
	// RetryAt reschedules the notification. Nil abandons it.
	RetryAt *time.Time
}

// Storage persists notifications. Every method except Pending, MarkSent and
// MarkFailed is confined to one tenant.
type Storage interface {
	Create(ctx context.Context, n Notification) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (Notification, error)
	List(ctx context.Context, tenantID uuid.UUID, f Filter) ([]Notification, error)
	CountUnread(ctx context.Context, tenantID, recipientID uuid.UUID) (int64, error)

	// MarkRead flags unread notifications as read and returns how many
	// changed. A nil recipientID covers every recipient; empty ids cover
	// every notification.
	MarkRead(ctx context.Context, tenantID uuid.UUID, recipientID *uuid.UUID, at time.Time, ids ...uuid.UUID) (int64, error)

	// Pending returns unsent, not abandoned notifications of any tenant
	// scheduled at or before now, oldest first. Limit <= 0 means no limit.
	Pending(ctx context.Context, now time.Time, limit int) ([]Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkFailed stores the attempt count and error. It moves scheduled_for
	// to f.RetryAt, or sets failed_at to at when f.RetryAt is nil.
	MarkFailed(ctx context.Context, id uuid.UUID, f Failure, at time.Time) error
}
