package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"coloringbook/internal/infra"
	"coloringbook/internal/infra/credentials"
)

// providerkey stores or inspects image provider API keys in integration_tokens.
func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		showFlag     bool
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (falls back to the provider environment variable)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderGemini, "image provider to configure (gemini, openai or qwen)")
	flag.BoolVar(&showFlag, "show", false, "print a masked copy of the stored key instead of writing one")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if provider == "" {
		provider = credentials.ProviderGemini
	}
	envKey, ok := map[string]string{
		credentials.ProviderGemini: "GEMINI_API_KEY",
		credentials.ProviderOpenAI: "OPENAI_API_KEY",
		credentials.ProviderQwen:   "DASHSCOPE_API_KEY",
	}[provider]
	if !ok {
		fail("unsupported provider %q", providerFlag)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fail("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fail("failed to create pool: %v", err)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if showFlag {
		token, err := store.Token(ctx, provider)
		if err != nil {
			fail("failed to read %s api key: %v", provider, err)
		}
		if token == "" {
			fmt.Printf("%s: no key stored\n", provider)
			return
		}
		fmt.Printf("%s: %s\n", provider, mask(token))
		return
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envKey))
	}
	if key == "" {
		fail("%s API key is required via -key or %s", strings.ToUpper(provider), envKey)
	}
	if err := store.SetToken(ctx, provider, key); err != nil {
		fail("failed to persist %s api key: %v", provider, err)
	}
	fmt.Printf("%s API key stored (%s)\n", strings.ToUpper(provider), mask(key))
}

func mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
