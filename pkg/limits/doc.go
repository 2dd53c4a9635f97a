// Package limits enforces per-tenant resource ceilings (users, patients,
// storage) and describes subscription plans.
//
// Counters are registered per resource and their results cached for ten
// minutes by default:
//
//	counters := limits.NewRegistry()
//	counters.Register(limits.ResourcePatients, store.CountPatients)
//	svc := limits.NewService(counters, limits.WithUsageCache(kv))
//
//	usage, err := svc.Check(ctx, t, limits.ResourcePatients, 1)
//	var exceeded *limits.ExceededError
//	if errors.As(err, &exceeded) {
//		// exceeded.Usage.Current, .Limit, .Available
//	}
//
// A request is allowed iff current+additional <= limit. Unlimited (-1)
// always allows; a zero limit refuses any positive request.
//
// Plans come from a Source (memory, YAML file) and are validated into a
// Catalog. ComparePlans and Service.CanDowngrade support plan changes.
package limits
