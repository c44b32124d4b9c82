// Package commands implements the rokstats subcommands.
package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rokstats/rokstats/config"
	"github.com/rokstats/rokstats/internal/domain/ranking"
	"github.com/rokstats/rokstats/internal/infrastructure/persistence/postgres"
	"github.com/rokstats/rokstats/pkg/logger"
	"github.com/rokstats/rokstats/pkg/retry"
)

// loadConfig reads configuration from path, or from $ROKSTATS_CONFIG when
// path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newLogger builds the process logger. CLI commands log to stderr so table
// output on stdout stays clean.
func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output: os.Stderr,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: cfg.Observability.LogFormat,
	}).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// newEngine builds the ranking engine from engine settings.
func newEngine(cfg *config.Config) (*ranking.Engine, error) {
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}
	return ranking.NewEngine(opts...), nil
}

// connectDatabase opens the pool, retrying while the database comes up.
func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	dbCfg := postgres.DefaultConfig(cfg.Database.URL)
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	dbCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	retrier := retry.StartupRetrier(cfg.Database.ConnectAttempts, cfg.Database.ConnectDelay,
		func(attempt int, err error, delay time.Duration) {
			log.Warn("database not reachable, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		})

	conn, err := retry.DoWithData(ctx, retrier, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, dbCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return conn, nil
}
