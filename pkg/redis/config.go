package redis

import "time"

// Config describes the optional shared Redis instance. When ConnectionURL is
// empty the application falls back to process-local caches.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                              // ConnectionURL in the form "redis://:password@localhost:6379/0".
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"clinic:"`  // KeyPrefix namespaces every key written by KV.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`    // RetryAttempts is the number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`   // RetryInterval is the pause between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"` // ConnectTimeout bounds the whole connection phase.
}

// Enabled reports whether a Redis URL was configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
