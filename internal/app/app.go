// Package app wires configuration into a running reconciliation service:
// database pool, catalog (optionally cached), inventory store, audit log,
// event publisher and metrics. Both binaries start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/rxstock/internal/catalog"
	"github.com/JonMunkholm/rxstock/internal/config"
	"github.com/JonMunkholm/rxstock/internal/core"
	"github.com/JonMunkholm/rxstock/internal/events"
	"github.com/JonMunkholm/rxstock/internal/inventory"
	"github.com/JonMunkholm/rxstock/internal/metrics"
	"github.com/JonMunkholm/rxstock/internal/migrations"
)

// App holds the wired service and the resources it must release.
type App struct {
	Service *core.Service
	Pool    *pgxpool.Pool
	Audit   *inventory.AuditLog
	Catalog core.Catalog

	redis     *redis.Client
	publisher *events.Publisher
	logger    *slog.Logger
}

// Build connects to the configured backends. Metrics are registered with
// reg when it is non-nil. Optional backends that are disabled stay nil.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{logger: logger}

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(cfg.Database.URL, logger); err != nil {
			return nil, err
		}
	}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	logger.Info("connected to database", "name", databaseName(cfg.Database.URL))

	var cat core.Catalog = catalog.NewPostgres(pool, catalog.DefaultSearchLimit)
	var store core.InventoryStore = inventory.NewStore(pool)

	if cfg.Cache.Enabled {
		rdb, err := catalog.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = rdb
		cache := catalog.NewCache(cat, rdb, cfg.Cache.TTL, logger)
		cat = cache
		store = cache.WrapStore(store)
		logger.Info("catalog cache enabled", "ttl", cfg.Cache.TTL)
	}
	a.Catalog = cat
	a.Audit = inventory.NewAuditLog(pool)

	deps := core.Deps{
		Catalog: cat,
		Store:   store,
		Audit:   a.Audit,
		Logger:  logger,
	}
	if cfg.Events.Enabled {
		a.publisher = events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic, logger)
		deps.Events = a.publisher
		logger.Info("commit events enabled", "topic", cfg.Events.Topic, "brokers", strings.Join(cfg.Events.Brokers, ","))
	}
	if reg != nil {
		deps.Metrics = metrics.New(reg)
	}

	svc, err := core.NewService(deps, ServiceConfig(cfg.Import))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc
	return a, nil
}

// ServiceConfig maps the import settings onto core.ServiceConfig.
func ServiceConfig(c config.ImportConfig) core.ServiceConfig {
	return core.ServiceConfig{
		ChunkSize:            c.ChunkSize,
		CallTimeout:          c.CallTimeout,
		CommitTimeout:        c.CommitTimeout,
		CandidateLimit:       c.CandidateLimit,
		MaxConcurrentCommits: c.MaxConcurrentCommits,
		CommitWaitTime:       c.CommitWaitTime,
		SessionTTL:           c.SessionTTL,
		MaxFileSize:          c.MaxFileSize,
	}
}

// Ping checks the database; it backs /healthz.
func (a *App) Ping(ctx context.Context) error {
	return a.Pool.Ping(ctx)
}

// Close releases every backend connection. Call after the service has
// drained its commits.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}

func openPool(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pc.MaxConns = int32(dc.MaxConns)
	pc.MinConns = int32(dc.MinConns)
	pc.MaxConnLifetime = dc.MaxConnLifetime
	pc.MaxConnIdleTime = dc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// databaseName extracts the database name for logs without the credentials.
func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
