package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// Option customises a single Load call.
type Option func(*options)

type options struct {
	prefix      string
	files       []string
	environment map[string]string
}

// WithPrefix only reads variables starting with prefix, e.g. "CLINIC_".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnvFiles loads the given dotenv files instead of ./.env.
// Variables already present in the process environment win.
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.files = files }
}

// WithEnvironment parses from the given map instead of the process
// environment. Dotenv files are skipped.
func WithEnvironment(vars map[string]string) Option {
	return func(o *options) { o.environment = vars }
}

// Load parses environment variables into a new T using `env` and
// `envDefault` struct tags.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//	cfg, err := config.Load[Config]()
func Load[T any](opts ...Option) (T, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var cfg T
	envOpts := env.Options{Prefix: o.prefix}

	switch {
	case o.environment != nil:
		envOpts.Environment = o.environment
	case len(o.files) > 0:
		if err := godotenv.Load(o.files...); err != nil {
			return cfg, errors.Join(ErrLoadingEnvFile, err)
		}
	default:
		dotenvOnce.Do(func() {
			// A missing .env is normal outside local development.
			_ = godotenv.Load()
		})
	}

	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad is Load that panics on failure.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}
