package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/presetstudio/entitlements/internal/api"
	"github.com/presetstudio/entitlements/internal/infrastructure/config"
	mongodb "github.com/presetstudio/entitlements/internal/infrastructure/db/mongo"
	redisdb "github.com/presetstudio/entitlements/internal/infrastructure/db/redis"
	"github.com/presetstudio/entitlements/internal/infrastructure/queue"
	"github.com/presetstudio/entitlements/pkg/logger"
)

// @title        Entitlement & Usage Metering API
// @version      1.0
// @description  Session lifecycle, anonymous quota, tiered usage metering, and subscription lifecycle for the template studio.
// @BasePath     /
func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(shutdownCtx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	// --- Engine wiring ---
	deps := api.BuildDependencies(cfg, db, rdb, log)

	// Duplicate-signup rejection depends on the unique email index, so a
	// failure here is fatal rather than degraded.
	if err := deps.Principals.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("mongo index creation failed")
	}

	dispatcher := queue.NewDispatcher(cfg.BillingWorkers, deps.Subscriptions, log)
	dispatcher.Start(ctx)

	e := api.NewRouter(cfg, deps, dispatcher, db, rdb, log)

	// --- Serve ---
	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("entitlement engine listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
