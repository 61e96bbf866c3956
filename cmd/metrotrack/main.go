package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"metrotrack/internal/cache"
	"metrotrack/internal/config"
	"metrotrack/internal/handler"
	"metrotrack/internal/middleware"
	"metrotrack/internal/reconcile"
	"metrotrack/internal/refstore"
	"metrotrack/internal/stations"
	"metrotrack/pkg/feedhttp"
	"metrotrack/pkg/korailapi"
	"metrotrack/pkg/topisapi"
)

func main() {
	if err := run(); err != nil {
		slog.Error("metrotrack exited", "error", err)
		os.Exit(1)
	}
}

// openReferenceStore opens the reference database and checks its tables.
// The store is closed again when the check fails.
func openReferenceStore(ctx context.Context, opts refstore.Options, logger *slog.Logger) (*refstore.Store, error) {
	store := refstore.New(opts, logger)
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("reference database unavailable: %w", err)
	}
	return store, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting metrotrack server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"secondary_enabled", cfg.SecondaryEnabled,
		"reference_enabled", cfg.ReferenceEnabled(),
		"redis_enabled", cfg.RedisEnabled,
	)

	stationRef, err := stations.Load(cfg.StationsFile)
	if err != nil {
		return fmt.Errorf("load station reference: %w", err)
	}
	logger.Info("station reference loaded", "lines", len(stationRef.Lines()))

	loc, _ := cfg.Location()
	checks := map[string]handler.Pinger{}

	deps := reconcile.Deps{
		Stations: stationRef,
		Primary: korailapi.New(cfg.PrimaryAPIURL, feedhttp.New(feedhttp.Config{
			Source:     "primary_feed",
			Timeout:    cfg.UpstreamTimeout,
			MaxRetries: cfg.UpstreamMaxRetries,
			RateLimit:  cfg.UpstreamRateLimit,
			RateBurst:  cfg.UpstreamRateBurst,
		})),
		Logger: logger,
	}

	if cfg.SecondaryEnabled {
		deps.Secondary = topisapi.New(cfg.SecondaryAPIURL, feedhttp.New(feedhttp.Config{
			Source:     "secondary_feed",
			Timeout:    cfg.UpstreamTimeout,
			MaxRetries: cfg.UpstreamMaxRetries,
			RateLimit:  cfg.UpstreamRateLimit,
			RateBurst:  cfg.UpstreamRateBurst,
		}))
	}

	if cfg.ReferenceEnabled() {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
		refStore, err := openReferenceStore(pingCtx, refstore.Options{
			Driver:    cfg.RefDBDriver,
			DSN:       cfg.RefDBDSN,
			CacheSize: cfg.ScheduleCacheSize,
			CacheTTL:  cfg.ScheduleCacheTTL,
			Location:  loc,
		}, logger)
		pingCancel()
		if err != nil {
			return err
		}
		defer refStore.Close()
		deps.Schedules = refStore
		checks["refdb"] = refStore
	}

	engine, err := reconcile.New(deps, reconcile.Options{QueryTimeout: cfg.QueryTimeout})
	if err != nil {
		return fmt.Errorf("build reconciliation engine: %w", err)
	}

	var resultCache handler.ResultCache
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.ResultCacheTTL,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, serving without result cache", "error", err)
		} else {
			defer redisCache.Close()
			resultCache = redisCache
			checks["redis"] = redisCache
		}
	}

	httpHandler := handler.NewHTTPHandler(engine, stationRef, resultCache, logger)
	healthHandler := handler.NewHealthHandler(len(stationRef.Lines()), checks)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, cfg.RateLimitWhitelist, logger)

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/lines/{line}/trains", httpHandler.ListLineTrains)
	api.HandleFunc("GET /v1/lines/{line}/stations", httpHandler.ListStations)
	api.HandleFunc("GET /v1/lines/{line}/stations/{code}/trains", httpHandler.ListStationTrains)

	mux := http.NewServeMux()
	mux.Handle("/v1/", limiter.Middleware(api))
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.RequestIDMiddleware(handler.CORSMiddleware(handler.GzipMiddleware(mux))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go limiter.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
