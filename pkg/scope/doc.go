// Package scope builds tenant-isolated, soft-delete aware SQL with squirrel.
//
// Every query built through a Table is filtered by the tenant bound to the
// context (see package tenant) and, for soft-deletable tables, by
// visibility:
//
//	patients := scope.On("patients")
//
//	q, err := patients.Select(ctx, "id", "full_name")     // live rows of ctx tenant
//	q, err = patients.With(scope.WithDeleted()).Select(ctx, "id")
//	q, err = patients.With(scope.DeletedOnly()).Count(ctx)
//	ins, err := patients.Insert(ctx, map[string]any{"full_name": name}) // tenant_id stamped
//
// A context without a tenant yields ErrNoTenant rather than an unfiltered
// query. Administrative code opts out explicitly with AsSuperuser; within a
// superuser context ForTenant narrows to one tenant again.
package scope
