// Package redis connects to Redis and exposes it as a shared cache.KV.
//
// Connect retries with a bounded timeout, Healthcheck plugs into the HTTP
// readiness check and KV stores namespaced byte values:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	kv := redis.NewKV(client, cfg.KeyPrefix)
//
// Redis is optional; callers check Config.Enabled and fall back to
// cache.NewMemoryKV when no URL is configured.
package redis
