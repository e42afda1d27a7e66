package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/novamart-client/internal/telemetry"
	"github.com/Sternrassler/novamart-client/pkg/client"
	"github.com/Sternrassler/novamart-client/pkg/config"
	"github.com/Sternrassler/novamart-client/pkg/logging"
	"github.com/Sternrassler/novamart-client/pkg/resolver"
	"github.com/Sternrassler/novamart-client/pkg/storage"
	"github.com/Sternrassler/novamart-client/pkg/storefront"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "storefront-proxy"

var version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("NOVAMART_CONFIG"))
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.FromSettings(cfg.Logging.Level, cfg.Logging.Pretty, serviceName))

	shutdownTracing, err := telemetry.Setup(serviceName, version, os.Stdout, cfg.Tracing.Enabled)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, ready, closeStore, err := openStore(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	clientCfg := client.DefaultConfig(cfg.API.UserAgent)
	clientCfg.BaseURL = cfg.API.BaseURL
	clientCfg.Timeout = cfg.API.Timeout
	clientCfg.MaxRetries = cfg.API.MaxRetries
	clientCfg.InitialBackoff = cfg.API.InitialBackoff

	resolverCfg := resolver.DefaultConfig()
	resolverCfg.MaxConcurrency = cfg.Resolver.MaxConcurrency
	resolverCfg.Timeout = cfg.API.Timeout

	catalog, err := storefront.New(storefront.Options{
		Namespace: cfg.Cache.Namespace,
		Store:     store,
		Client:    clientCfg,
		RateLimit: cfg.API.RateLimit,
		Resolver:  resolverCfg,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if cfg.Server.StatsSchedule != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Server.StatsSchedule, statsReporter(catalog, logger)); err != nil {
			return fmt.Errorf("schedule stats report: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: otelhttp.NewHandler(newServer(catalog, ready, logger).routes(), serviceName),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("user_agent", cfg.API.UserAgent).
			Str("backend", cfg.Cache.Backend).
			Msg("Starting storefront proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down storefront proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore returns the configured cache backend, its readiness probe and a close func.
func openStore(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (storage.Store, readyFunc, func(), error) {
	if cfg.Backend != config.BackendRedis {
		return storage.NewMemoryStore(cfg.QuotaBytes), nil, func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

	ready := func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}
	return storage.NewRedisStore(redisClient), ready, func() { redisClient.Close() }, nil
}

func statsReporter(catalog *storefront.Catalog, logger zerolog.Logger) func() {
	return func() {
		ctx := context.Background()
		stats := catalog.CacheStats(ctx)
		logger.Info().
			Int("cached_products", stats.CachedProducts).
			Int("cached_batches", stats.CachedBatches).
			Float64("total_size_kb", stats.TotalSizeKB).
			Int("cart_lines", catalog.Cart().Count()).
			Msg("Cache statistics")
	}
}
