package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a system log entry.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		return true
	}
	return false
}

// Entry is one system log record. TenantID and UserID are nil for
// platform-level events.
type Entry struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    *uuid.UUID     `json:"tenant_id,omitempty"`
	UserID      *uuid.UUID     `json:"user_id,omitempty"`
	Level       Level          `json:"level"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	IP          string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Extra       map[string]any `json:"extra_data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validate checks the required fields of e.
func (e Entry) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidEntry)
	}
	if len(e.Action) > 100 {
		return fmt.Errorf("%w: action longer than 100 characters", ErrInvalidEntry)
	}
	if !e.Level.Valid() {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidEntry, e.Level)
	}
	return nil
}

// EntryOption adjusts an Entry before it is stored.
type EntryOption func(*Entry)

// WithUser attributes the entry to a user, overriding the context.
func WithUser(id uuid.UUID) EntryOption {
	return func(e *Entry) { e.UserID = &id }
}

// WithTenant attributes the entry to a tenant, overriding the context.
func WithTenant(id uuid.UUID) EntryOption {
	return func(e *Entry) { e.TenantID = &id }
}

// WithExtra adds a metadata key to the entry.
func WithExtra(key string, value any) EntryOption {
	return func(e *Entry) {
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[key] = value
	}
}

// WithClient records the caller's address and user agent.
func WithClient(ip, userAgent string) EntryOption {
	return func(e *Entry) {
		e.IP = ip
		e.UserAgent = userAgent
	}
}
