package notifications

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type is the notification severity.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

// Channel is the medium a notification is delivered through.
type Channel string

const (
	ChannelSystem Channel = "system"
	ChannelEmail  Channel = "email"
	ChannelSMS    Channel = "sms"
	ChannelPush   Channel = "push"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSystem, ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// Notification is a message addressed to one user of a tenant.
type Notification struct {
	ID           uuid.UUID      `json:"id"`
	TenantID     uuid.UUID      `json:"tenant_id"`
	RecipientID  uuid.UUID      `json:"recipient_id"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Type         Type           `json:"type"`
	Channel      Channel        `json:"channel"`
	Data         map[string]any `json:"data,omitempty"`
	IsRead       bool           `json:"is_read"`
	ReadAt       *time.Time     `json:"read_at,omitempty"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`

	// Attempts counts failed deliveries. FailedAt is set once delivery is
	// abandoned.
	Attempts  int        `json:"attempts,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	FailedAt  *time.Time `json:"failed_at,omitempty"`
}

// Due reports whether the notification is scheduled at or before now and
// is neither sent nor abandoned.
func (n Notification) Due(now time.Time) bool {
	return n.SentAt == nil && n.FailedAt == nil && n.ScheduledFor != nil && !n.ScheduledFor.After(now)
}

// Validate checks the fields a caller must supply.
func (n Notification) Validate() error {
	var errs []error
	if n.RecipientID == uuid.Nil {
		errs = append(errs, errors.New("recipient is required"))
	}
	if n.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if !n.Type.Valid() {
		errs = append(errs, errors.New("unknown type"))
	}
	if !n.Channel.Valid() {
		errs = append(errs, errors.New("unknown channel"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidNotification}, errs...)...)
	}
	return nil
}
