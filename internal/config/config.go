// Package config composes the per-package configuration structs into the
// server configuration.
package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	pkgconfig "github.com/dmitrymomot/clinickit/pkg/config"
	"github.com/dmitrymomot/clinickit/pkg/email"
	"github.com/dmitrymomot/clinickit/pkg/httpserver"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/pg"
	"github.com/dmitrymomot/clinickit/pkg/redis"
	"github.com/dmitrymomot/clinickit/pkg/storage"
)

var (
	ErrInvalidBaseDomain = errors.New("config: base domain must not be empty")
	ErrWeakAdminToken    = errors.New("config: admin token must be at least 32 characters")
	ErrWeakJWTSecret     = errors.New("config: jwt secret must be at least 32 characters")
)

// App holds settings that belong to the server itself.
type App struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"APP_SERVICE" envDefault:"clinickit"`
	LogLevel    string `env:"LOG_LEVEL"`
	LogFormat   string `env:"LOG_FORMAT"`

	// BaseDomain hosts tenant subdomains: <slug>.<BaseDomain>.
	BaseDomain string `env:"BASE_DOMAIN" envDefault:"clinickit.local"`
	UseSSL     bool   `env:"USE_SSL" envDefault:"true"`
	AdminToken string `env:"ADMIN_TOKEN"`
	PlansFile  string `env:"PLANS_FILE"`

	TrustedIPHeaders []string `env:"TRUSTED_IP_HEADERS" envSeparator:","`
}

// Tenancy tunes tenant resolution and usage caching.
type Tenancy struct {
	ResolverCacheTTL  time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	ResolverCacheSize int           `env:"TENANT_CACHE_SIZE" envDefault:"1000"`
	UsageCacheTTL     time.Duration `env:"USAGE_CACHE_TTL" envDefault:"1m"`
	SettingsCacheTTL  time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"1h"`
	CacheMaxAge       int           `env:"TENANT_CACHE_MAX_AGE" envDefault:"300"`
	SuspendedPath     string        `env:"TENANT_SUSPENDED_PATH" envDefault:"/tenant-suspended"`
}

// RateLimit is applied per tenant. Zero RPS disables it.
type RateLimit struct {
	RPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	Burst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// Auth configures access tokens of tenant users.
type Auth struct {
	JWTSecret  string        `env:"JWT_SECRET,required"`
	JWTIssuer  string        `env:"JWT_ISSUER" envDefault:"clinickit"`
	TokenTTL   time.Duration `env:"JWT_TTL" envDefault:"12h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`
}

// Workers configures background loops.
type Workers struct {
	ExpiryInterval   time.Duration `env:"WORKER_EXPIRY_INTERVAL" envDefault:"1h"`
	DispatchInterval time.Duration `env:"WORKER_DISPATCH_INTERVAL" envDefault:"30s"`
	DispatchBatch    int           `env:"WORKER_DISPATCH_BATCH" envDefault:"100"`
	DispatchAttempts int           `env:"WORKER_DISPATCH_MAX_ATTEMPTS" envDefault:"5"`
	DispatchBackoff  time.Duration `env:"WORKER_DISPATCH_RETRY_DELAY" envDefault:"1m"`
	DispatchMaxDelay time.Duration `env:"WORKER_DISPATCH_MAX_DELAY" envDefault:"1h"`
	AuditBuffer      int           `env:"AUDIT_BUFFER_SIZE" envDefault:"1000"`
	AuditBatch       int           `env:"AUDIT_BATCH_SIZE" envDefault:"100"`
	AuditFlush       time.Duration `env:"AUDIT_FLUSH_INTERVAL" envDefault:"2s"`
	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"3s"`
}

// Config is the full server configuration.
type Config struct {
	App       App
	Auth      Auth
	Tenancy   Tenancy
	RateLimit RateLimit
	Workers   Workers

	HTTP     httpserver.Config
	Postgres pg.Config
	Redis    redis.Config
	Storage  storage.Config
	Email    email.Config
}

// Load reads Config from the environment (and .env when present).
func Load(opts ...pkgconfig.Option) (Config, error) {
	cfg, err := pkgconfig.Load[Config](opts...)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the env tags cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.App.BaseDomain) == "" {
		return ErrInvalidBaseDomain
	}
	if c.App.AdminToken != "" && len(c.App.AdminToken) < 32 {
		return ErrWeakAdminToken
	}
	if len(c.Auth.JWTSecret) < 32 {
		return ErrWeakJWTSecret
	}
	return nil
}

// LoggerOptions translates the App section into logger options. Explicit
// LOG_LEVEL and LOG_FORMAT override the environment defaults.
func (a App) LoggerOptions() []logger.Option {
	opts := []logger.Option{logger.WithEnvironment(a.Env, a.ServiceName)}
	if a.LogLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(a.LogLevel)); err == nil {
			opts = append(opts, logger.WithLevel(lvl))
		}
	}
	switch logger.Format(strings.ToLower(a.LogFormat)) {
	case logger.FormatJSON:
		opts = append(opts, logger.WithFormat(logger.FormatJSON))
	case logger.FormatText:
		opts = append(opts, logger.WithFormat(logger.FormatText))
	}
	return opts
}
