package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/bulk-messaging/internal/activity"
	"github.com/LeventeLantos/bulk-messaging/internal/api"
	"github.com/LeventeLantos/bulk-messaging/internal/cache"
	"github.com/LeventeLantos/bulk-messaging/internal/client"
	"github.com/LeventeLantos/bulk-messaging/internal/config"
	"github.com/LeventeLantos/bulk-messaging/internal/logging"
	"github.com/LeventeLantos/bulk-messaging/internal/repo"
	"github.com/LeventeLantos/bulk-messaging/internal/service"
)

const defaultShutdownTimeout = 60 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("messaging service stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log.Info().
		Str("addr", cfg.Server.Address).
		Str("store", cfg.Store.Driver).
		Str("activity", cfg.Activity.Driver).
		Bool("redis", cfg.Redis.Enabled()).
		Msg("messaging app starting")

	store, err := repo.Open(ctx, repo.Config{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		PostgresURL: cfg.Store.PostgresURL,
	})
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	rdb, err := openRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	backend, err := activityBackend(cfg.Activity, rdb)
	if err != nil {
		return err
	}

	wc := client.NewWebhookClient(cfg.Webhook.URL, client.WithRateLimit(cfg.Webhook.RatePerSec))

	var hm *client.HealthMonitor
	if cfg.Webhook.HealthURL != "" {
		hm, err = client.NewHealthMonitor(wc, cfg.Webhook.HealthURL, cfg.Webhook.HealthCheck)
		if err != nil {
			return err
		}
	}

	var opts []service.Option
	if rdb != nil {
		opts = append(opts, service.WithReceiptCache(cache.NewRedisCache(rdb, cfg.Redis.TTL)))
	}
	messenger, err := service.New(store, activity.New(backend, clockwork.NewRealClock()), wc, opts...)
	if err != nil {
		return err
	}
	if err := messenger.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.Router(api.NewHandler(messenger)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// stop taking requests first, then drain dispatches that are already sending
		return errors.Join(
			srv.Shutdown(shutdownCtx),
			messenger.Stop(shutdownCtx),
		)
	})

	if hm != nil {
		g.Go(func() error { return hm.Run(gctx) })
	}

	return g.Wait()
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}
	return rdb, nil
}

func activityBackend(cfg config.ActivityConfig, rdb *redis.Client) (activity.Backend, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		if rdb == nil {
			return nil, errors.New("redis activity backend needs REDIS_ADDR")
		}
		return activity.NewRedisBackend(rdb, activity.DefaultRedisKey), nil
	case config.DriverFile, "":
		return activity.NewFileBackend(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown activity driver %q", cfg.Driver)
	}
}
