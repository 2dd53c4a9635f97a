package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// RetryPolicy spaces out redelivery of failed notifications. The n-th
// failure waits BaseDelay * 2^(n-1), capped at MaxDelay; after MaxAttempts
// failures the notification is abandoned.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy gives up after five attempts spread over about 15
// minutes.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: time.Minute, MaxDelay: time.Hour}

// next returns when to retry after the given number of failures, or nil to
// give up.
func (p RetryPolicy) next(attempts int, now time.Time) *time.Time {
	if attempts >= p.MaxAttempts {
		return nil
	}
	d := p.BaseDelay << min(attempts-1, 30)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	at := now.Add(d)
	return &at
}

// Manager stores and delivers notifications of the tenant bound to the
// request context.
type Manager struct {
	storage   Storage
	deliverer Deliverer
	retry     RetryPolicy
	logger    *slog.Logger
	now       func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy. Non-positive fields keep
// their defaults.
func WithRetryPolicy(p RetryPolicy) ManagerOption {
	return func(m *Manager) {
		if p.MaxAttempts > 0 {
			m.retry.MaxAttempts = p.MaxAttempts
		}
		if p.BaseDelay > 0 {
			m.retry.BaseDelay = p.BaseDelay
		}
		if p.MaxDelay > 0 {
			m.retry.MaxDelay = p.MaxDelay
		}
	}
}

// WithClock overrides time.Now; used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. A nil deliverer delivers nothing.
func NewManager(storage Storage, deliverer Deliverer, opts ...ManagerOption) *Manager {
	if deliverer == nil {
		deliverer = NoOpDeliverer{}
	}
	m := &Manager{
		storage:   storage,
		deliverer: deliverer,
		retry:     DefaultRetryPolicy,
		logger:    logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send stores n for the current tenant. Without ScheduledFor it is due
// immediately and delivery is attempted right away; a failed attempt is
// rescheduled for DispatchPending. Channels the deliverer cannot route are
// rejected.
func (m *Manager) Send(ctx context.Context, n Notification) (Notification, error) {
	tenantID, ok := tenant.IDFromContext(ctx)
	if !ok {
		return Notification{}, tenant.ErrNoTenantInContext
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if n.Channel == "" {
		n.Channel = ChannelSystem
	}
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	if cs, ok := m.deliverer.(ChannelSupporter); ok && !cs.Supports(n.Channel) {
		return Notification{}, errors.Join(ErrInvalidNotification, fmt.Errorf("%w: %s", ErrNoDeliverer, n.Channel))
	}

	now := m.now().UTC()
	n.ID = uuid.New()
	n.TenantID = tenantID
	n.IsRead, n.ReadAt, n.SentAt = false, nil, nil
	n.Attempts, n.LastError, n.FailedAt = 0, "", nil
	n.CreatedAt = now
	if n.ScheduledFor == nil {
		n.ScheduledFor = &now
	}

	if err := m.storage.Create(ctx, n); err != nil {
		return Notification{}, errors.Join(ErrFailedToStore, err)
	}
	if n.Due(now) {
		_ = m.deliver(ctx, &n)
	}
	return n, nil
}

// Get returns a notification of the current tenant.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (Notification, error) {
	tenantID, ok := tenant.IDFromContext(ctx)
	if !ok {
		return Notification{}, tenant.ErrNoTenantInContext
	}
	return m.storage.Get(ctx, tenantID, id)
}

// List returns the current tenant's notifications matching f, newest first.
func (m *Manager) List(ctx context.Context, f Filter) ([]Notification, error) {
	tenantID, ok := tenant.IDFromContext(ctx)
	if !ok {
		return nil, tenant.ErrNoTenantInContext
	}
	return m.storage.List(ctx, tenantID, f)
}

// Unread returns the current tenant's unread notifications.
func (m *Manager) Unread(ctx context.Context) ([]Notification, error) {
	read := false
	return m.List(ctx, Filter{Read: &read})
}

// Read returns the current tenant's read notifications.
func (m *Manager) Read(ctx context.Context) ([]Notification, error) {
	read := true
	return m.List(ctx, Filter{Read: &read})
}

// ForUser returns the notifications of one recipient.
func (m *Manager) ForUser(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	return m.List(ctx, Filter{RecipientID: userID})
}

// ByChannel returns the notifications sent through ch.
func (m *Manager) ByChannel(ctx context.Context, ch Channel) ([]Notification, error) {
	return m.List(ctx, Filter{Channel: ch})
}

// PendingSend returns the current tenant's unsent notifications that are due.
func (m *Manager) PendingSend(ctx context.Context) ([]Notification, error) {
	all, err := m.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := make([]Notification, 0, len(all))
	for _, n := range all {
		if n.Due(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

// CountUnread counts a recipient's unread notifications.
func (m *Manager) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	tenantID, ok := tenant.IDFromContext(ctx)
	if !ok {
		return 0, tenant.ErrNoTenantInContext
	}
	return m.storage.CountUnread(ctx, tenantID, userID)
}

// MarkAsRead flags unread notifications of the current tenant as read and
// returns how many changed. A nil recipient covers all users; ids narrow it
// to specific notifications.
func (m *Manager) MarkAsRead(ctx context.Context, recipient *uuid.UUID, ids ...uuid.UUID) (int64, error) {
	tenantID, ok := tenant.IDFromContext(ctx)
	if !ok {
		return 0, tenant.ErrNoTenantInContext
	}
	return m.storage.MarkRead(ctx, tenantID, recipient, m.now().UTC(), ids...)
}

// DispatchPending delivers up to batch due notifications across all tenants
// and returns how many were sent. Failed deliveries are rescheduled with
// backoff or abandoned, so they never hold the head of the queue.
func (m *Manager) DispatchPending(ctx context.Context, batch int) (int, error) {
	now := m.now().UTC()
	pending, err := m.storage.Pending(ctx, now, batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := m.deliver(ctx, &pending[i]); err == nil {
			sent++
		}
	}
	return sent, nil
}

// deliver hands n to the deliverer and records the outcome on n and in
// storage.
func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	err := m.deliverer.Deliver(ctx, *n)
	now := m.now().UTC()
	if err == nil {
		if err := m.storage.MarkSent(ctx, n.ID, now); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "failed to mark notification sent",
				slog.String("notification_id", n.ID.String()),
				logger.Error(err),
			)
			return err
		}
		n.SentAt = &now
		return nil
	}

	n.Attempts++
	n.LastError = err.Error()
	f := Failure{Attempts: n.Attempts, Error: n.LastError}
	// A channel without a route will not gain one by waiting.
	if !errors.Is(err, ErrNoDeliverer) {
		f.RetryAt = m.retry.next(n.Attempts, now)
	}
	attrs := []slog.Attr{
		slog.String("notification_id", n.ID.String()),
		slog.String("channel", string(n.Channel)),
		slog.Int("attempts", n.Attempts),
		logger.TenantID(n.TenantID),
		logger.UserID(n.RecipientID),
		logger.Error(err),
	}
	if f.RetryAt != nil {
		n.ScheduledFor = f.RetryAt
		m.logger.LogAttrs(ctx, slog.LevelWarn, "notification delivery failed",
			append(attrs, slog.Time("retry_at", *f.RetryAt))...)
	} else {
		n.FailedAt = &now
		m.logger.LogAttrs(ctx, slog.LevelError, "notification delivery abandoned", attrs...)
	}
	if serr := m.storage.MarkFailed(ctx, n.ID, f, now); serr != nil {
		m.logger.LogAttrs(ctx, slog.LevelError, "failed to record notification failure",
			slog.String("notification_id", n.ID.String()),
			logger.Error(serr),
		)
	}
	return err
}
