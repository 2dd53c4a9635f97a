package service

import (
	"context"

	"github.com/dmitrymomot/clinickit/pkg/audit"
)

// AuditLog records business events in the system log.
type AuditLog interface {
	Info(ctx context.Context, action, description string, opts ...audit.EntryOption) error
	Warning(ctx context.Context, action, description string, opts ...audit.EntryOption) error
}

type nopAudit struct{}

func (nopAudit) Info(context.Context, string, string, ...audit.EntryOption) error    { return nil }
func (nopAudit) Warning(context.Context, string, string, ...audit.EntryOption) error { return nil }
