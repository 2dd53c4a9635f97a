// Package storage measures per-tenant file storage so the storage quota can
// be enforced. Files of a tenant live under "tenants/<id>/" either in a
// local directory or in an S3 bucket.
//
//	meter, err := storage.NewMeter(ctx, cfg.Storage)
//	counters.Register(limits.ResourceStorage, storage.GigabytesCounter(meter))
package storage
