// Package logger builds slog loggers that enrich every record with
// request-scoped attributes.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "clinickit"),
//		logger.WithContextExtractors(
//			requestid.LoggerExtractor(),
//			tenant.LoggerExtractor(),
//		),
//	)
//	log.InfoContext(ctx, "patient created", logger.Resource("patients"))
//
// Attribute helpers (Error, TenantID, UserID, Host, ...) keep key names
// consistent across packages.
package logger
