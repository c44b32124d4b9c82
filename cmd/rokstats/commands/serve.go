package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rokstats/rokstats/config"
	"github.com/rokstats/rokstats/internal/application/command"
	"github.com/rokstats/rokstats/internal/application/eventhandler"
	"github.com/rokstats/rokstats/internal/application/query"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
	"github.com/rokstats/rokstats/internal/infrastructure/messaging"
	"github.com/rokstats/rokstats/internal/infrastructure/persistence/postgres"
	"github.com/rokstats/rokstats/internal/infrastructure/persistence/redis"
	httpserver "github.com/rokstats/rokstats/internal/interface/http"
	"github.com/rokstats/rokstats/internal/interface/http/handlers"
	"github.com/rokstats/rokstats/pkg/circuitbreaker"
	"github.com/rokstats/rokstats/pkg/logger"
	"github.com/rokstats/rokstats/pkg/metrics"
)

// NewServeCommand creates the serve command.
func NewServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg)
	log.Info("starting rokstats", logger.String("version", cfg.App.Version))

	m := metrics.NewManager(metrics.WithNamespace(cfg.Observability.MetricsNamespace))

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Snapshot store
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := connectDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database connection")
		conn.Close()
	}()

	if cfg.Database.AutoMigrate {
		n, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied", logger.Int("count", n))
	}

	breaker := circuitbreaker.StoreBreaker(cfg.Database.BreakerThreshold, cfg.Database.BreakerTimeout,
		func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	repo := postgres.NewGuardedRepository(postgres.NewSnapshotRepository(conn), breaker, m, cfg.Database.QueryTimeout)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.NewPingCheck(conn))
	health.AddCheck("store_breaker", handlers.NewBreakerCheck(breaker))

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus and optional result cache
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	qdeps := query.Dependencies{
		Snapshots: repo,
		Engine:    engine,
		Metrics:   m,
		Logger:    log,
	}

	if cfg.Cache.Enabled {
		cache, err := connectCache(ctx, cfg)
		if err != nil {
			log.Warn("result cache unavailable, serving uncached", logger.Err(err))
		} else {
			defer func() { _ = cache.Close() }()

			results := redis.NewResultCache(cache, cfg.Cache.Prefix, cfg.Cache.TTL)
			qdeps.Cache = results
			health.AddCheck("cache", handlers.NewPingCheck(cache))

			if err := eventhandler.NewOnSnapshotsAppendedHandler(results, m, log).Subscribe(bus); err != nil {
				return fmt.Errorf("subscribe cache invalidator: %w", err)
			}
			log.Info("result cache enabled", logger.String("prefix", cfg.Cache.Prefix))
		}
	}

	defaultMetric, _ := snapshot.ParseMetric(cfg.Engine.DefaultMetric)

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	server := httpserver.NewServer(httpserver.ConfigFrom(cfg), httpserver.Dependencies{
		RankEntities:      query.NewRankEntitiesHandler(qdeps),
		GetEntityHistory:  query.NewGetEntityHistoryHandler(qdeps),
		GetGroupDashboard: query.NewGetGroupDashboardHandler(qdeps, defaultMetric),
		ListGroups:        query.NewListGroupsHandler(qdeps),
		AppendSnapshots:   command.NewAppendSnapshotsHandler(repo, bus, log),
		Metrics:           m,
		Logger:            log,
		HealthChecker:     health,
	})
	if cfg.HTTP.IngestAPIKey == "" {
		log.Warn("http.ingest_api_key is empty, snapshot ingestion rejects every request")
	}

	errCh := server.StartAsync()

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed")
	return nil
}

func connectCache(ctx context.Context, cfg *config.Config) (*redis.Cache, error) {
	rc := redis.DefaultConfig(cfg.Redis.URL)
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return redis.NewCache(ctx, rc)
}
