package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Activity ActivityConfig
	Redis    RedisConfig
	Webhook  WebhookConfig
	Log      LogConfig
}

type ServerConfig struct {
	Address string `env:"SERVER_ADDRESS,default=:8080"`
	// bounds how long shutdown waits for running dispatches
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=60s"`
}

type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER,default=file"`
	Path        string `env:"STORE_PATH,default=data/scheduled-jobs.json"`
	PostgresURL string `env:"POSTGRES_URL"`
}

type ActivityConfig struct {
	Driver string `env:"ACTIVITY_DRIVER,default=file"`
	Path   string `env:"ACTIVITY_PATH,default=data/activity-log.json"`
}

type RedisConfig struct {
	Address  string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,default=0"`
	TTL      time.Duration `env:"REDIS_TTL,default=24h"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool { return r.Address != "" }

type WebhookConfig struct {
	URL         string `env:"WEBHOOK_URL,required"`
	HealthURL   string `env:"WEBHOOK_HEALTH_URL"`
	RatePerSec  int    `env:"WEBHOOK_RATE_PER_SEC,default=10"`
	HealthCheck string `env:"HEALTH_CHECK_SPEC,default=@every 30s"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Pretty bool   `env:"LOG_PRETTY,default=false"`
}

func LoadAll() (*Config, error) {
	return Load(context.Background(), envconfig.OsLookuper())
}

// Load reads the configuration from l and validates it.
func Load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, cfg, l); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Webhook.URL) == "" {
		errs = append(errs, errors.New("WEBHOOK_URL must not be empty"))
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be > 0"))
	}
	if cfg.Webhook.RatePerSec < 0 {
		errs = append(errs, errors.New("WEBHOOK_RATE_PER_SEC must be >= 0"))
	}

	switch cfg.Store.Driver {
	case DriverFile, DriverSQLite:
		if cfg.Store.Path == "" {
			errs = append(errs, fmt.Errorf("STORE_PATH is required for driver %q", cfg.Store.Driver))
		}
	case DriverPostgres:
		if cfg.Store.PostgresURL == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of file, sqlite, postgres", cfg.Store.Driver))
	}

	switch cfg.Activity.Driver {
	case DriverFile:
		if cfg.Activity.Path == "" {
			errs = append(errs, errors.New("ACTIVITY_PATH is required for driver \"file\""))
		}
	case DriverRedis:
		if !cfg.Redis.Enabled() {
			errs = append(errs, errors.New("REDIS_ADDR is required when ACTIVITY_DRIVER=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("ACTIVITY_DRIVER %q is not one of file, redis", cfg.Activity.Driver))
	}

	if cfg.Redis.Enabled() {
		if cfg.Redis.DB < 0 {
			errs = append(errs, errors.New("REDIS_DB must be >= 0"))
		}
		if cfg.Redis.TTL <= 0 {
			errs = append(errs, errors.New("REDIS_TTL must be > 0"))
		}
	}

	if cfg.Webhook.HealthURL != "" && strings.TrimSpace(cfg.Webhook.HealthCheck) == "" {
		errs = append(errs, errors.New("HEALTH_CHECK_SPEC is required when WEBHOOK_HEALTH_URL is set"))
	}

	return errors.Join(errs...)
}
