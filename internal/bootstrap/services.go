// Package bootstrap assembles the job services shared by cmd/api and cmd/worker.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"coloringbook/internal/adapter/repo"
	"coloringbook/internal/httpfetch"
	"coloringbook/internal/infra"
	"coloringbook/internal/infra/credentials"
	"coloringbook/internal/photobook"
	"coloringbook/internal/providers/genai"
	"coloringbook/internal/providers/image"
	"coloringbook/internal/providers/openai"
	"coloringbook/internal/providers/qwen"
	"coloringbook/internal/remix"
	"coloringbook/internal/storage"
	"coloringbook/internal/taskqueue"
)

// Services is the wired object graph of one process.
type Services struct {
	DB        *pgxpool.Pool
	SQL       *infra.SQLRunner
	Store     storage.Store
	StaticDir string
	Images    *image.Service
	Remix     *remix.Runner
	Photobook *photobook.Service
}

// NewServices connects to Postgres and builds storage, providers and job services.
func NewServices(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Services, error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	svc := &Services{DB: pool, SQL: infra.NewSQLRunner(pool, infra.Component(logger, "sql"))}

	switch cfg.StorageDriver {
	case "s3":
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
		svc.Store = store
	default:
		store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			pool.Close()
			return nil, err
		}
		svc.Store = store
		svc.StaticDir = store.BasePath()
	}

	fetcher := httpfetch.NewClient(httpfetch.Options{
		Timeout:  cfg.FetchTimeout,
		MaxBytes: cfg.FetchMaxBytes,
	})

	svc.Images, err = newImageService(ctx, cfg, svc.SQL, fetcher, svc.Store, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	svc.Remix = remix.NewRunner(
		repo.NewRemixJobRepository(svc.SQL),
		repo.NewImageVariantRepository(svc.SQL),
		svc.Images,
		logger,
		remix.Config{
			Concurrency:       cfg.RemixConcurrency,
			GenerationTimeout: cfg.GenerationTimeout,
			StaleAfter:        cfg.JobStaleAfter,
		},
	)
	svc.Photobook = photobook.NewService(
		repo.NewPhotobookJobRepository(svc.SQL),
		fetcher,
		svc.Store,
		logger,
		photobook.Config{
			StaleAfter:    cfg.JobStaleAfter,
			DefaultLocale: cfg.DefaultLocale,
		},
	)
	return svc, nil
}

// newImageService registers every provider that has credentials. The
// synthetic generator is always available and becomes the default when the
// configured provider cannot be used.
func newImageService(ctx context.Context, cfg *infra.Config, sql infra.SQLExecutor, fetcher httpfetch.Fetcher, store storage.Store, logger zerolog.Logger) (*image.Service, error) {
	creds := credentials.NewStore(sql)
	httpClient := &http.Client{Timeout: cfg.GenerationTimeout}

	geminiKey, err := creds.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap: failed to load gemini api key from store")
	}
	openaiKey, err := creds.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap: failed to load openai api key from store")
	}
	qwenKey, err := creds.Resolve(ctx, credentials.ProviderQwen, cfg.QwenAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap: failed to load qwen api key from store")
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.ImageProvider))
	available := map[string]bool{"synthetic": true}

	imageLogger := infra.Component(logger, "image")
	service := image.NewService(fetcher, store, "", imageLogger)
	service.Register(image.NewSyntheticGenerator(), "synthetic")

	if geminiKey != "" {
		client, err := genai.NewClient(genai.Options{
			APIKey:     geminiKey,
			BaseURL:    cfg.GeminiBaseURL,
			Model:      cfg.GeminiModel,
			HTTPClient: httpClient,
			Logger:     &imageLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("configure gemini client: %w", err)
		}
		service.Register(image.NewGeminiGenerator(client), "gemini", client.Model(), "nano-banana")
		available["gemini"] = true
		available[client.Model()] = true
	}
	if openaiKey != "" {
		client, err := openai.NewClient(openai.Options{
			APIKey:       openaiKey,
			Model:        cfg.OpenAIImageModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("configure openai client: %w", err)
		}
		service.Register(image.NewOpenAIGenerator(client), "openai", client.Model())
		available["openai"] = true
		available[client.Model()] = true
	}

	if qwenKey != "" {
		client, err := qwen.NewClient(qwen.Options{
			APIKey:     qwenKey,
			BaseURL:    cfg.QwenBaseURL,
			Model:      cfg.QwenModel,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("configure qwen client: %w", err)
		}
		service.Register(image.NewQwenGenerator(client), "qwen", client.Model())
		available["qwen"] = true
		available[client.Model()] = true
	}

	if !available[defaultProvider] {
		logger.Warn().Str("provider", defaultProvider).Msg("bootstrap: image provider has no credentials, using synthetic generation")
		defaultProvider = "synthetic"
	}
	service.SetDefault(defaultProvider)
	logger.Info().Strs("providers", service.Providers()).Str("default", defaultProvider).Msg("bootstrap: image providers ready")
	return service, nil
}

// Handlers maps task types to the services that process them.
func (s *Services) Handlers() taskqueue.Handlers {
	return taskqueue.Handlers{
		taskqueue.TypePhotobookProcess: s.Photobook.HandleTask,
		taskqueue.TypeRemixProcess:     s.Remix.HandleTask,
	}
}

// Close releases the database pool.
func (s *Services) Close() {
	if s != nil && s.DB != nil {
		s.DB.Close()
	}
}

// RedisOpt returns the asynq connection settings.
func RedisOpt(cfg *infra.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
