package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/pg"
)

var systemLogColumns = []string{
	"id", "tenant_id", "user_id", "level", "action", "description",
	"COALESCE(host(ip_address), '')", "user_agent", "request_id", "extra_data", "created_at",
}

func scanEntry(r rowScanner) (audit.Entry, error) {
	var (
		e     audit.Entry
		extra []byte
	)
	err := r.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Level, &e.Action, &e.Description,
		&e.IP, &e.UserAgent, &e.RequestID, &extra, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &e.Extra); err != nil {
			return e, err
		}
	}
	return e, nil
}

// SystemLogStore persists audit entries. Entries span tenants, so the
// table is not scoped; readers narrow by tenant explicitly.
type SystemLogStore struct {
	db DB
}

// NewSystemLogStore creates a SystemLogStore.
func NewSystemLogStore(db DB) *SystemLogStore {
	return &SystemLogStore{db: db}
}

func (s *SystemLogStore) insert(e audit.Entry) (sq.InsertBuilder, error) {
	extra := e.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return sq.InsertBuilder{}, errors.Join(audit.ErrInvalidEntry, err)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return psql.Insert("system_logs").SetMap(map[string]any{
		"id": e.ID, "tenant_id": e.TenantID, "user_id": e.UserID, "level": string(e.Level),
		"action": e.Action, "description": e.Description,
		"ip_address": sq.Expr("NULLIF(?::text, '')::inet", e.IP),
		"user_agent": e.UserAgent, "request_id": e.RequestID,
		"extra_data": sq.Expr("?::jsonb", string(raw)), "created_at": e.CreatedAt,
	}), nil
}

// Store inserts a single entry.
func (s *SystemLogStore) Store(ctx context.Context, e audit.Entry) error {
	b, err := s.insert(e)
	if err != nil {
		return err
	}
	_, err = exec(ctx, s.db, b)
	return err
}

// StoreBatch writes all entries in one transaction.
func (s *SystemLogStore) StoreBatch(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, e := range entries {
			b, err := s.insert(e)
			if err != nil {
				return err
			}
			if _, err := exec(ctx, tx, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query returns entries matching c, newest first.
func (s *SystemLogStore) Query(ctx context.Context, c audit.Criteria) ([]audit.Entry, error) {
	b := psql.Select(systemLogColumns...).From("system_logs")
	if c.TenantID != nil {
		b = b.Where(sq.Eq{"tenant_id": *c.TenantID})
	}
	if c.UserID != nil {
		b = b.Where(sq.Eq{"user_id": *c.UserID})
	}
	if len(c.Levels) > 0 {
		levels := make([]string, len(c.Levels))
		for i, l := range c.Levels {
			levels[i] = string(l)
		}
		b = b.Where(sq.Eq{"level": levels})
	}
	if c.Action != "" {
		b = b.Where(sq.Eq{"action": c.Action})
	}
	if !c.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": c.Since})
	}
	return queryAll(ctx, s.db, paginate(b.OrderBy("created_at DESC"), c.Limit, c.Offset), scanEntry)
}
