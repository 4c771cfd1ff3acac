package database

import (
	"context"

	"github.com/JonMunkholm/opsdash/internal/config"
)

// Open selects a backend from the configured URL, connects it and, when
// configured, creates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	if cfg.IsSQLite() {
		store, err = OpenSQLite(cfg.SQLitePath())
	} else {
		store, err = OpenPostgres(ctx, cfg.URL, PoolOptions{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	}
	if err != nil {
		return nil, err
	}

	if cfg.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}
