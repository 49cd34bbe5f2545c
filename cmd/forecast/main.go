package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/constitution-forecast-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/constitution-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/constitution-forecast-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/constitution-forecast-service/internal/adapter/postgres"
	redisstore "github.com/couchcryptid/constitution-forecast-service/internal/adapter/redis"
	"github.com/couchcryptid/constitution-forecast-service/internal/config"
	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/observability"
	"github.com/couchcryptid/constitution-forecast-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profiles := redisstore.NewProfileStore(redisstore.NewClient(cfg))
	checkers := []sharedobs.ReadinessChecker{profiles}

	// Weather provider (feature-flagged via WEATHER_ENABLED). Requests that
	// carry their own hourly series never reach it.
	var weather domain.WeatherProvider
	if cfg.WeatherEnabled {
		client := openmeteo.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimeout, metrics, logger)
		weather = openmeteo.NewCachedProvider(client, cfg.WeatherCacheSize, cfg.WeatherCacheTTL, metrics)
		metrics.WeatherEnabled.Set(1)
		logger.Info("weather provider enabled", "base_url", cfg.WeatherBaseURL, "cache_size", cfg.WeatherCacheSize, "cache_ttl", cfg.WeatherCacheTTL, "timeout", cfg.WeatherTimeout)
	} else {
		logger.Info("weather provider disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	var (
		loader    pipeline.BatchLoader = writer
		forecasts domain.ForecastStore
		db        *sql.DB
	)
	if cfg.ForecastStoreEnabled {
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to forecast store", "error", err)
			os.Exit(1)
		}
		store := postgres.NewForecastStore(db, clockwork.NewRealClock())
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate forecast store", "error", err)
			os.Exit(1)
		}
		forecasts = store
		loader = pipeline.MultiLoader{pipeline.NewStoreLoader(store), writer}
		checkers = append(checkers, store)
		logger.Info("forecast store enabled")
	}

	transformer := pipeline.NewTransformer(profiles, weather, logger)
	p := pipeline.New(reader, transformer, loader, logger, metrics, cfg.BatchSize)
	checkers = append([]sharedobs.ReadinessChecker{p}, checkers...)

	api := httpadapter.NewAPI(profiles, forecasts, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(checkers...), api, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start forecast pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := profiles.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
