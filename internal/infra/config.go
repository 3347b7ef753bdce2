package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	DatabaseURL   string
	DBAutoMigrate bool
	JWTSecret     string

	StorageDriver   string
	StoragePath     string
	StorageBaseURL  string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKeyID   string
	S3SecretKey     string
	S3PublicBaseURL string

	QueueDriver       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	WorkerConcurrency int
	WorkerQueueSize   int
	WorkerPoll        time.Duration

	ImageProvider     string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiBaseURL     string
	OpenAIAPIKey      string
	OpenAIImageModel  string
	OpenAIBaseURL     string
	OpenAIOrg         string
	QwenAPIKey        string
	QwenModel         string
	QwenBaseURL       string
	RemixConcurrency  int
	GenerationTimeout time.Duration
	FetchTimeout      time.Duration
	FetchMaxBytes     int64
	JobStaleAfter     time.Duration

	GeoIPDBPath      string
	DefaultLocale    string
	CORSOrigins      []string
	OTLPEndpoint     string
	ServiceName      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          port,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBAutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		StorageDriver:   strings.ToLower(getEnv("STORAGE_DRIVER", "fs")),
		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getEnv("S3_REGION", "auto"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:   os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:     os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),

		QueueDriver:       strings.ToLower(getEnv("QUEUE_DRIVER", "inprocess")),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerQueueSize:   getEnvInt("WORKER_QUEUE_SIZE", 64),
		WorkerPoll:        time.Second * time.Duration(getEnvInt("WORKER_POLL_SECONDS", 2)),

		ImageProvider:     getEnv("IMAGE_PROVIDER", "gemini"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIImageModel:  getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:         os.Getenv("OPENAI_ORG"),
		QwenAPIKey:        os.Getenv("DASHSCOPE_API_KEY"),
		QwenModel:         getEnv("QWEN_IMAGE_MODEL", "qwen-image-edit"),
		QwenBaseURL:       getEnv("QWEN_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		RemixConcurrency:  clampInt(getEnvInt("REMIX_CONCURRENCY", 1), 1, 5),
		GenerationTimeout: time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 120)),
		FetchTimeout:      time.Second * time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)),
		FetchMaxBytes:     int64(getEnvInt("FETCH_MAX_BYTES", 20<<20)),
		JobStaleAfter:     time.Second * time.Duration(getEnvInt("JOB_STALE_AFTER_SECONDS", 900)),

		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		CORSOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:      getEnv("OTEL_SERVICE_NAME", "coloringbook"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.StorageDriver {
	case "fs":
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	switch cfg.QueueDriver {
	case "inprocess", "asynq":
	default:
		return nil, fmt.Errorf("unsupported QUEUE_DRIVER %q", cfg.QueueDriver)
	}

	if _, err := url.Parse(cfg.StorageBaseURL); err != nil {
		return nil, fmt.Errorf("invalid STORAGE_BASE_URL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
