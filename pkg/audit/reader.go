package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultPageSize bounds reader queries that do not set a limit.
const DefaultPageSize = 100

// Reader offers the common system log queries.
type Reader struct {
	q   Querier
	now func() time.Time
}

// NewReader creates a Reader over q.
func NewReader(q Querier) *Reader {
	if q == nil {
		panic("audit: querier cannot be nil")
	}
	return &Reader{q: q, now: time.Now}
}

// Find runs c as given, applying DefaultPageSize when c.Limit is zero.
func (r *Reader) Find(ctx context.Context, c Criteria) ([]Entry, error) {
	if c.Limit <= 0 {
		c.Limit = DefaultPageSize
	}
	return r.q.Query(ctx, c)
}

// ForTenant returns the latest entries of a tenant.
func (r *Reader) ForTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]Entry, error) {
	return r.Find(ctx, Criteria{TenantID: &tenantID, Limit: limit})
}

// ForUser returns the latest entries of a user.
func (r *Reader) ForUser(ctx context.Context, userID uuid.UUID, limit int) ([]Entry, error) {
	return r.Find(ctx, Criteria{UserID: &userID, Limit: limit})
}

// ByLevel returns the latest entries of a level.
func (r *Reader) ByLevel(ctx context.Context, level Level, limit int) ([]Entry, error) {
	return r.Find(ctx, Criteria{Levels: []Level{level}, Limit: limit})
}

// ByAction returns the latest entries of an action.
func (r *Reader) ByAction(ctx context.Context, action string, limit int) ([]Entry, error) {
	return r.Find(ctx, Criteria{Action: action, Limit: limit})
}

// Errors returns error and critical entries.
func (r *Reader) Errors(ctx context.Context, limit int) ([]Entry, error) {
	return r.Find(ctx, Criteria{Levels: []Level{LevelError, LevelCritical}, Limit: limit})
}

// Recent returns entries from the last days days.
func (r *Reader) Recent(ctx context.Context, days, limit int) ([]Entry, error) {
	if days <= 0 {
		days = 7
	}
	return r.Find(ctx, Criteria{Since: r.now().AddDate(0, 0, -days), Limit: limit})
}
