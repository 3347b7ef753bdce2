package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"coloringbook/internal/bootstrap"
	"coloringbook/internal/infra"
	"coloringbook/internal/photobook"
	"coloringbook/internal/taskqueue"
)

// sweeper claims queued or stale photobook jobs that never reached a
// dispatcher, e.g. after a failed enqueue or an API restart.
type sweeper struct {
	photobooks *photobook.Service
	interval   time.Duration
	logger     zerolog.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry, err := infra.EnsureTelemetry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: telemetry init failed")
	}
	defer telemetry.Shutdown(context.Background())

	services, err := bootstrap.NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build services")
	}
	defer services.Close()

	var server *asynq.Server
	if cfg.QueueDriver == "asynq" {
		server = taskqueue.NewServer(bootstrap.RedisOpt(cfg), cfg.WorkerConcurrency, cfg.AppEnv)
		mux := taskqueue.NewServeMux(services.Handlers(), infra.Component(logger, "taskqueue"))
		if err := server.Start(mux); err != nil {
			logger.Fatal().Err(err).Msg("worker: asynq server failed to start")
		}
		logger.Info().Str("redis", cfg.RedisAddr).Msg("worker: consuming asynq tasks")
	}

	s := &sweeper{
		photobooks: services.Photobook,
		interval:   cfg.WorkerPoll,
		logger:     infra.Component(logger, "sweeper"),
	}
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
	}

	if server != nil {
		server.Shutdown()
	}
	logger.Info().Msg("worker: stopped")
}

func (s *sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.interval = 2 * time.Second
	}
	s.logger.Info().Dur("interval", s.interval).Msg("worker: started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		n, err := s.photobooks.ProcessQueue(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			s.logger.Error().Err(err).Msg("worker: photobook sweep failed")
		case n > 0:
			s.logger.Info().Int("jobs", n).Msg("worker: photobook sweep finished")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
