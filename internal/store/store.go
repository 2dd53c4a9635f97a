package store

import (
	"context"
	"embed"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/clinickit/pkg/pg"
)

// Migrations holds the goose migrations applied at startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations holding the SQL files.
const MigrationsDir = "migrations"

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")

	// ErrPrimaryDomain is returned when removing a tenant's primary domain.
	ErrPrimaryDomain = errors.New("store: primary domain cannot be removed")
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	pg.Querier
	pg.TxBeginner
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store groups the table stores sharing one pool.
type Store struct {
	Tenants       *TenantStore
	Domains       *DomainStore
	Users         *UserStore
	Patients      *PatientStore
	Settings      *SettingStore
	Notifications *NotificationStore
	SystemLogs    *SystemLogStore
}

// New creates every repository on db.
func New(db DB) *Store {
	return &Store{
		Tenants:       NewTenantStore(db),
		Domains:       NewDomainStore(db),
		Users:         NewUserStore(db),
		Patients:      NewPatientStore(db),
		Settings:      NewSettingStore(db),
		Notifications: NewNotificationStore(db),
		SystemLogs:    NewSystemLogStore(db),
	}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func queryOne[T any](ctx context.Context, db pg.Querier, b sq.Sqlizer, scan func(rowScanner) (T, error)) (T, error) {
	var zero T
	query, args, err := b.ToSql()
	if err != nil {
		return zero, err
	}
	v, err := scan(db.QueryRow(ctx, query, args...))
	if err != nil {
		return zero, mapErr(err)
	}
	return v, nil
}

func queryAll[T any](ctx context.Context, db pg.Querier, b sq.Sqlizer, scan func(rowScanner) (T, error)) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func queryInt(ctx context.Context, db pg.Querier, b sq.Sqlizer) (int64, error) {
	return queryOne(ctx, db, b, func(r rowScanner) (int64, error) {
		var n int64
		return n, r.Scan(&n)
	})
}

func queryBool(ctx context.Context, db pg.Querier, b sq.Sqlizer) (bool, error) {
	return queryOne(ctx, db, b, func(r rowScanner) (bool, error) {
		var ok bool
		return ok, r.Scan(&ok)
	})
}

// exec runs b and returns the affected row count.
func exec(ctx context.Context, db pg.Querier, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

// execOne is exec that reports ErrNotFound when nothing changed.
func execOne(ctx context.Context, db pg.Querier, b sq.Sqlizer) error {
	n, err := exec(ctx, db, b)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case pg.IsDuplicateKeyError(err):
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

func paginate(b sq.SelectBuilder, limit, offset int) sq.SelectBuilder {
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	if offset > 0 {
		b = b.Offset(uint64(offset))
	}
	return b
}
