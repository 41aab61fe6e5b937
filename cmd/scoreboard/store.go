package main

import (
	"fmt"
	"os"
	"path/filepath"

	"scoreboard/internal/config"
	"scoreboard/internal/storage"
	"scoreboard/internal/storage/boltstore"
	"scoreboard/internal/storage/sqlstore"
)

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		return boltstore.New(cfg.BoltPath, cfg.BoltOpenTimeout), nil
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		return sqlstore.New(sqlstore.DialectSQLite, cfg.SQLitePath), nil
	case config.BackendPostgres:
		return sqlstore.New(sqlstore.DialectPostgres, cfg.PostgresDSN), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
