// Command server runs the clinic platform HTTP API and its background
// workers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/clinickit/internal/api"
	"github.com/dmitrymomot/clinickit/internal/config"
	"github.com/dmitrymomot/clinickit/internal/metrics"
	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/internal/worker"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/cache"
	"github.com/dmitrymomot/clinickit/pkg/clientip"
	"github.com/dmitrymomot/clinickit/pkg/email"
	"github.com/dmitrymomot/clinickit/pkg/httpserver"
	"github.com/dmitrymomot/clinickit/pkg/jwt"
	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/notifications"
	"github.com/dmitrymomot/clinickit/pkg/pg"
	"github.com/dmitrymomot/clinickit/pkg/redis"
	"github.com/dmitrymomot/clinickit/pkg/requestid"
	"github.com/dmitrymomot/clinickit/pkg/settings"
	"github.com/dmitrymomot/clinickit/pkg/storage"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

const memoryCacheSize = 10_000

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	log := logger.New(append(cfg.App.LoggerOptions(),
		logger.WithContextExtractors(tenant.LoggerExtractor(), jwt.LoggerExtractor(), requestid.LoggerExtractor()),
	)...)
	slog.SetDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Postgres.AutoMigrate {
		if err := pg.Migrate(ctx, pool, store.Migrations, store.MigrationsDir, cfg.Postgres, log); err != nil {
			return err
		}
	}

	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}}

	var kv cache.KV = cache.NewMemoryKV(memoryCacheSize)
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeRedis(client, log)
		kv = redis.NewKV(client, cfg.Redis.KeyPrefix)
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return err
	}

	app, err := build(ctx, cfg, log, pool, kv, m)
	if err != nil {
		return err
	}

	handler := api.NewRouter(api.Deps{
		Resolver:         app.resolver,
		Auth:             app.auth,
		Tokens:           app.tokens,
		Tenants:          app.tenants,
		Users:            app.users,
		Patients:         app.patients,
		Usage:            app.limits,
		Plans:            app.plans,
		Settings:         app.settings,
		Notifications:    app.notifications,
		Logs:             audit.NewReader(app.store.SystemLogs),
		Logger:           log,
		Metrics:          m,
		Gatherer:         reg,
		RateLimiter:      api.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		ClientIP:         clientip.New(cfg.App.TrustedIPHeaders...),
		Checks:           checks,
		AdminToken:       cfg.App.AdminToken,
		SuspendedPath:    cfg.Tenancy.SuspendedPath,
		CacheMaxAge:      cfg.Tenancy.CacheMaxAge,
		ReadinessTimeout: cfg.Workers.ReadinessTimeout,
	})
	if cfg.App.AdminToken == "" {
		log.WarnContext(ctx, "ADMIN_TOKEN is not set, admin routes are disabled")
	}

	expirer := worker.NewPeriodic("subscription-expirer", cfg.Workers.ExpiryInterval,
		app.tenants.ExpireSubscriptions,
		worker.WithLogger(log), worker.WithReport(m.SubscriptionsExpired))
	dispatcher := worker.NewPeriodic("notification-dispatcher", cfg.Workers.DispatchInterval,
		func(ctx context.Context) (int, error) {
			return app.notifications.DispatchPending(ctx, cfg.Workers.DispatchBatch)
		},
		worker.WithLogger(log), worker.WithReport(m.NotificationsDispatched))

	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx, handler) })
	g.Go(expirer.Run(ctx))
	g.Go(dispatcher.Run(ctx))
	err = g.Wait()

	// Flush queued system log entries once nothing produces them anymore.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if cerr := app.auditWriter.Close(closeCtx); cerr != nil {
		log.Error("failed to flush system log", logger.Error(cerr))
	}
	return err
}

type application struct {
	store         *store.Store
	resolver      *tenant.Resolver
	plans         *limits.Catalog
	limits        *limits.Service
	settings      *settings.Manager
	notifications *notifications.Manager
	auditWriter   *audit.AsyncWriter
	tokens        *jwt.Service
	auth          *service.AuthService
	tenants       *service.TenantService
	users         *service.UserService
	patients      *service.PatientService
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger, pool *pgxpool.Pool, kv cache.KV, m *metrics.Metrics) (*application, error) {
	st := store.New(pool)
	app := &application{store: st}

	var tenantCache tenant.Cache = tenant.NewMemoryCache(cfg.Tenancy.ResolverCacheSize)
	if cfg.Redis.Enabled() {
		tenantCache = tenant.NewKVCache(kv)
	}
	app.resolver = tenant.NewResolver(st.Tenants,
		tenant.WithCache(tenantCache),
		tenant.WithCacheTTL(cfg.Tenancy.ResolverCacheTTL),
		tenant.WithResolverLogger(log),
		tenant.WithObserver(m.ResolverObserver()),
	)

	src := limits.NewMemorySource(limits.DefaultPlans()...)
	if cfg.App.PlansFile != "" {
		src = limits.NewYAMLFileSource(cfg.App.PlansFile)
	}
	plans, err := limits.NewCatalog(ctx, src)
	if err != nil {
		return nil, err
	}
	app.plans = plans

	meter, err := storage.NewMeter(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	counters := limits.NewRegistry()
	counters.Register(limits.ResourceUsers, st.Users.Count)
	counters.Register(limits.ResourcePatients, st.Patients.Count)
	counters.Register(limits.ResourceStorage, storage.GigabytesCounter(meter))
	app.limits = limits.NewService(counters,
		limits.WithUsageCache(kv),
		limits.WithUsageTTL(cfg.Tenancy.UsageCacheTTL),
		limits.WithLogger(log),
		limits.WithCheckObserver(m.LimitObserver()),
	)

	app.settings = settings.NewManager(st.Settings,
		settings.WithCache(kv),
		settings.WithTTL(cfg.Tenancy.SettingsCacheTTL),
		settings.WithLogger(log),
	)

	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		return nil, err
	}
	router := notifications.NewChannelRouter().
		Route(notifications.ChannelSystem, notifications.NoOpDeliverer{}).
		Route(notifications.ChannelEmail, notifications.NewEmailDeliverer(sender, st.Users.EmailOf))
	app.notifications = notifications.NewManager(st.Notifications, router,
		notifications.WithManagerLogger(log),
		notifications.WithRetryPolicy(notifications.RetryPolicy{
			MaxAttempts: cfg.Workers.DispatchAttempts,
			BaseDelay:   cfg.Workers.DispatchBackoff,
			MaxDelay:    cfg.Workers.DispatchMaxDelay,
		}),
	)

	app.auditWriter = audit.NewAsyncWriter(st.SystemLogs, audit.AsyncOptions{
		BufferSize:    cfg.Workers.AuditBuffer,
		BatchSize:     cfg.Workers.AuditBatch,
		FlushInterval: cfg.Workers.AuditFlush,
		Logger:        log,
	})
	auditLog := audit.NewLogger(app.auditWriter, audit.WithExtractors(audit.Extractors{
		TenantID:  tenant.IDFromContext,
		UserID:    jwt.UserIDFromContext,
		RequestID: requestid.FromContext,
		IP:        clientip.FromContext,
		UserAgent: clientip.UserAgentFromContext,
	}))

	app.tenants = service.NewTenantService(service.TenantDeps{
		Tenants:  st.Tenants,
		Domains:  st.Domains,
		Hosts:    app.resolver,
		Plans:    plans,
		Limits:   app.limits,
		Settings: st.Settings,
		Audit:    auditLog,
		Logger:   log,
	}, service.WithBaseDomain(cfg.App.BaseDomain, cfg.App.UseSSL))
	app.users = service.NewUserService(st.Users, app.limits,
		service.WithUserAudit(auditLog), service.WithUserLogger(log), service.WithBcryptCost(cfg.Auth.BcryptCost))

	app.tokens, err = jwt.NewFromString(cfg.Auth.JWTSecret,
		jwt.WithIssuer(cfg.Auth.JWTIssuer), jwt.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return nil, err
	}
	app.auth = service.NewAuthService(st.Users, app.tokens,
		service.WithAuthAudit(auditLog), service.WithAuthLogger(log), service.WithAuthBcryptCost(cfg.Auth.BcryptCost))
	app.patients = service.NewPatientService(st.Patients, app.limits, auditLog)

	return app, nil
}

func closeRedis(client *goredis.Client, log *slog.Logger) {
	if err := client.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		log.Error("failed to close redis client", logger.Error(err))
	}
}
