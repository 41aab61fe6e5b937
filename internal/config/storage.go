package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type StorageConfig struct {
	Backend         string        `env:"STORAGE_BACKEND" envDefault:"bolt"`
	BoltPath        string        `env:"BOLT_PATH" envDefault:"./data/scoreboard.db"`
	BoltOpenTimeout time.Duration `env:"BOLT_OPEN_TIMEOUT" envDefault:"1s"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"./data/scoreboard.db3"`
	PostgresDSN     string        `env:"POSTGRES_DSN"`
	PrefsPath       string        `env:"PREFS_PATH" envDefault:"./data/preferences.json"`
}

func LoadStorage() (StorageConfig, error) {
	var cfg StorageConfig
	if err := env.Parse(&cfg); err != nil {
		return StorageConfig{}, err
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch cfg.Backend {
	case BackendBolt, BackendSQLite:
	case BackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return StorageConfig{}, fmt.Errorf("POSTGRES_DSN is required for the %s backend", BackendPostgres)
		}
	default:
		return StorageConfig{}, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Backend)
	}
	return cfg, nil
}
