// Package pg bootstraps PostgreSQL access on top of pgx/v5: pooled
// connections with retry, goose migrations from an embedded filesystem,
// readiness checks, transaction helpers and SQLSTATE classification.
//
//	pool, err := pg.Connect(ctx, cfg.PG)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, migrations.FS, ".", cfg.PG, log); err != nil {
//		return err
//	}
//
// Stores accept a Querier so the same code runs against the pool or inside
// pg.WithTx.
package pg
