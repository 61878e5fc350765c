package repo

import (
	"context"
	"errors"
	"strings"
)

type Config struct {
	Driver      string // file | sqlite | postgres
	Path        string
	PostgresURL string
}

// Open returns the job store selected by cfg.Driver. An empty driver means
// "file".
func Open(ctx context.Context, cfg Config) (JobStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file", "json":
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, errors.New("store path is required for file driver")
		}
		return NewFileJobStore(cfg.Path), nil
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres", "postgresql", "pgx":
		return OpenPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, errors.New("unknown store driver: " + cfg.Driver)
	}
}
