// Package config loads typed configuration from environment variables and
// optional dotenv files using caarlos0/env struct tags.
//
// Each infrastructure package declares its own Config struct (pg.Config,
// redis.Config, httpserver.Config); the application composes them:
//
//	type AppConfig struct {
//		PG    pg.Config
//		Redis redis.Config
//	}
//	cfg := config.MustLoad[AppConfig]()
package config
