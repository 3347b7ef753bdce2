package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coloringbook/internal/bootstrap"
	"coloringbook/internal/http/handlers"
	httpapi "coloringbook/internal/http/httpapi"
	"coloringbook/internal/infra"
	"coloringbook/internal/infra/geoip"
	"coloringbook/internal/middleware"
	"coloringbook/internal/taskqueue"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	// Konfigurasi & logger
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	telemetry, err := infra.EnsureTelemetry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init telemetry")
	}

	if cfg.DBAutoMigrate {
		if err := infra.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	// DB pool, storage, provider dan job services
	services, err := bootstrap.NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer services.Close()

	// Dispatcher: in-process pool atau asynq (Redis)
	var (
		dispatcher taskqueue.Dispatcher
		pool       *taskqueue.Pool
	)
	switch cfg.QueueDriver {
	case "asynq":
		asynqDispatcher := taskqueue.NewAsynqDispatcher(bootstrap.RedisOpt(cfg), taskqueue.AsynqOptions{})
		defer asynqDispatcher.Close()
		dispatcher = asynqDispatcher
	default:
		pool = taskqueue.NewPool(services.Handlers(), cfg.WorkerConcurrency, cfg.WorkerQueueSize, logger)
		dispatcher = pool
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()
	var countryLookup middleware.CountryLookup
	if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := &handlers.App{
		Remix:     services.Remix,
		Photobook: services.Photobook,
		Tasks:     dispatcher,
		DB:        services.DB,
		Metrics:   telemetry.MetricsHandler,
		Logger:    infra.Component(logger, "http"),
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   countryLookup,
		StaticDir:       services.StaticDir,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	// Start async
	go func() {
		logger.Info().Str("queue", cfg.QueueDriver).Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if pool != nil {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.GenerationTimeout+10*time.Second)
		defer cancelDrain()
		if err := pool.Shutdown(drainCtx); err != nil {
			logger.Warn().Err(err).Msg("task pool did not drain; unfinished jobs stay resumable")
		}
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to flush telemetry")
	}
	logger.Info().Msg("server stopped")
}
