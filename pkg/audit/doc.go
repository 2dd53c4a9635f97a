// Package audit is the system log: leveled, tenant-attributed records of
// what happened on the platform (logins, plan changes, limit refusals,
// failures).
//
// Logger enriches each entry from the request context through Extractors
// and scrubs sensitive extra_data fields with a MetadataFilter before
// handing it to a Writer. Wrap a BatchWriter in AsyncWriter to keep writes
// off the request path.
//
//	w := audit.NewAsyncWriter(store, audit.AsyncOptions{Logger: log})
//	defer w.Close(shutdownCtx)
//	syslog := audit.NewLogger(w, audit.WithExtractors(audit.Extractors{
//		TenantID:  tenant.IDFromContext,
//		RequestID: requestid.FromContext,
//	}))
//
//	_ = syslog.Info(ctx, "plan.upgraded", "basic -> premium")
//
// Reader answers the usual questions: ForTenant, ForUser, ByLevel,
// ByAction, Errors and Recent.
package audit
