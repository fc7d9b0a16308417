package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/recollect/recollect/internal/config"
	storepkg "github.com/recollect/recollect/internal/store"
	storepg "github.com/recollect/recollect/internal/store/postgres"
	storesqlite "github.com/recollect/recollect/internal/store/sqlite"
)

// NewStore returns the catalog store selected by cfg.DBDriver.
// Postgres launches an async schema bootstrap and returns immediately for fast
// startup; SQLite applies its schema synchronously.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("RECOLLECT_SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
		st, err := storesqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("driver", cfg.DBDriver).Str("path", cfg.SQLitePath).Msg("store opened")
		return st, nil
	case "postgres":
		return newPostgresStore(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
}

func newPostgresStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	dsn := cfg.PostgresDSN
	if dsn == "" {
		return nil, fmt.Errorf("RECOLLECT_POSTGRES_DSN is required when DB_DRIVER=postgres")
	}

	// Open connection synchronously since health checks need it immediately
	db, err := storepg.Open(dsn)
	if err != nil {
		return nil, err
	}

	// Async bootstrap with configurable timeout; don't block startup
	go func() {
		bootstrapTimeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
		bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
		defer cancel()

		if err := storepg.EnsureSchema(bootstrapCtx, db); err != nil {
			log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap failed")
		} else {
			log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap completed")
		}
	}()

	return storepg.NewWithDB(db), nil
}

// NewStoreSync is NewStore with the Postgres schema applied before returning.
// Batch jobs use it because they write immediately.
func NewStoreSync(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	if cfg.DBDriver != "postgres" {
		return NewStore(ctx, cfg, log)
	}
	bootstrapCtx, cancel := context.WithTimeout(ctx, cfg.BootstrapTimeout())
	defer cancel()
	if err := storepg.Bootstrap(bootstrapCtx, cfg.PostgresDSN); err != nil {
		return nil, fmt.Errorf("postgres bootstrap: %w", err)
	}
	db, err := storepg.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	return storepg.NewWithDB(db), nil
}
