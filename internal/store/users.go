package store

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/pkg/scope"
)

var userColumns = []string{
	"id", "tenant_id", "email", "name", "role", "phone", "password_hash",
	"is_active", "last_login_at", "created_at", "updated_at", "deleted_at",
}

func scanUser(r rowScanner) (domain.User, error) {
	var u domain.User
	err := r.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.Phone, &u.PasswordHash,
		&u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	return u, err
}

// UserStore persists clinic users of the tenant in context.
type UserStore struct {
	db    DB
	table scope.Table
}

// NewUserStore creates a UserStore.
func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db, table: scope.On("users")}
}

// Create inserts u for the tenant in context and fills ID, TenantID and
// timestamps.
func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.IsActive, u.CreatedAt, u.UpdatedAt = true, now, now

	b, err := s.table.Insert(ctx, map[string]any{
		"id": u.ID, "email": u.Email, "name": u.Name, "role": string(u.Role), "phone": u.Phone,
		"password_hash": u.PasswordHash, "is_active": true, "created_at": now, "updated_at": now,
	})
	if err != nil {
		return err
	}
	query, args, err := b.Suffix("RETURNING tenant_id").ToSql()
	if err != nil {
		return err
	}
	return mapErr(s.db.QueryRow(ctx, query, args...).Scan(&u.TenantID))
}

// Get returns a live user of the tenant in context.
func (s *UserStore) Get(ctx context.Context, id uuid.UUID, opts ...scope.Option) (domain.User, error) {
	b, err := s.table.With(opts...).Select(ctx, userColumns...)
	if err != nil {
		return domain.User{}, err
	}
	return queryOne(ctx, s.db, b.Where(sq.Eq{"id": id}), scanUser)
}

// GetByEmail returns the live user with the given address. Addresses
// compare case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	b, err := s.table.Select(ctx, userColumns...)
	if err != nil {
		return domain.User{}, err
	}
	return queryOne(ctx, s.db, b.Where(sq.Eq{"email": strings.ToLower(strings.TrimSpace(email))}), scanUser)
}

// List returns users ordered by name.
func (s *UserStore) List(ctx context.Context, v scope.Visibility, limit, offset int) ([]domain.User, error) {
	b, err := s.table.With(scope.WithVisibility(v)).Select(ctx, userColumns...)
	if err != nil {
		return nil, err
	}
	return queryAll(ctx, s.db, paginate(b.OrderBy("name"), limit, offset), scanUser)
}

// Deactivate soft-deletes the user.
func (s *UserStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	b, err := s.table.SoftDelete(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.Where(sq.Eq{"id": id}))
}

// Restore reactivates a deactivated user.
func (s *UserStore) Restore(ctx context.Context, id uuid.UUID) error {
	b, err := s.table.Restore(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.Where(sq.Eq{"id": id}))
}

// TouchLogin stamps the last successful login.
func (s *UserStore) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	b, err := s.table.Update(ctx)
	if err != nil {
		return err
	}
	return execOne(ctx, s.db, b.Set("last_login_at", at).Where(sq.Eq{"id": id}))
}

// Count returns the number of live users of a tenant. It is the users
// counter for limit enforcement and may run outside a request.
func (s *UserStore) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	b, err := s.table.With(scope.ForTenant(tenantID)).Count(scope.AsSuperuser(ctx))
	if err != nil {
		return 0, err
	}
	return queryInt(ctx, s.db, b)
}

// EmailOf returns a live user's address; used for email notifications.
func (s *UserStore) EmailOf(ctx context.Context, tenantID, userID uuid.UUID) (string, error) {
	b, err := s.table.With(scope.ForTenant(tenantID)).Select(scope.AsSuperuser(ctx), "email")
	if err != nil {
		return "", err
	}
	return queryOne(ctx, s.db, b.Where(sq.Eq{"id": userID}), func(r rowScanner) (string, error) {
		var e string
		return e, r.Scan(&e)
	})
}
