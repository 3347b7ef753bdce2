package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"coloringbook/internal/domain"
	"coloringbook/internal/httpfetch"
	"coloringbook/internal/infra"
	"coloringbook/internal/storage"
)

// Options are per-call knobs for Service.Generate.
type Options struct {
	Provider  string
	Detail    string
	RequestID string
}

// Service fetches the source image, runs the selected provider and publishes
// the result to durable storage.
type Service struct {
	mu              sync.RWMutex
	providers       map[string]Generator
	defaultProvider string
	fetcher         httpfetch.Fetcher
	store           storage.Store
	logger          zerolog.Logger
}

func NewService(fetcher httpfetch.Fetcher, store storage.Store, defaultProvider string, logger zerolog.Logger) *Service {
	return &Service{
		providers:       make(map[string]Generator),
		defaultProvider: strings.ToLower(strings.TrimSpace(defaultProvider)),
		fetcher:         fetcher,
		store:           store,
		logger:          logger,
	}
}

// Register makes g selectable under name and any aliases.
func (s *Service) Register(g Generator, name string, aliases ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range append([]string{name}, aliases...) {
		s.providers[strings.ToLower(strings.TrimSpace(key))] = g
	}
}

// SetDefault changes the provider used when a request names an unknown one.
func (s *Service) SetDefault(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultProvider = strings.ToLower(strings.TrimSpace(name))
}

// Providers returns the registered provider keys.
func (s *Service) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.providers))
	for k := range s.providers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s *Service) selectProvider(requested string) (Generator, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	requested = strings.ToLower(strings.TrimSpace(requested))
	if generator, ok := s.providers[requested]; ok {
		return generator, requested
	}
	generator, ok := s.providers[s.defaultProvider]
	if !ok {
		return nil, requested
	}
	return generator, s.defaultProvider
}

// Generate produces one remixed image for prompt and returns its public URL.
// Provider failures are wrapped in domain.UpstreamError.
func (s *Service) Generate(ctx context.Context, imageURL, prompt string, opts Options) (string, error) {
	ctx, span := otel.Tracer("coloringbook/image").Start(ctx, "image.generate")
	defer span.End()

	generator, provider := s.selectProvider(opts.Provider)
	span.SetAttributes(attribute.String("image.provider", provider))
	if generator == nil {
		err := fmt.Errorf("image provider %q not configured", opts.Provider)
		infra.CaptureException(span, err)
		return "", err
	}

	src, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		infra.CaptureException(span, err)
		return "", fmt.Errorf("fetch source image: %w", err)
	}
	mime := src.ContentType
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(src.Data)
	}

	asset, err := generator.Generate(ctx, GenerateRequest{
		Prompt:    prompt,
		Source:    SourceImage{URL: imageURL, MIME: mime, Data: src.Data},
		Detail:    opts.Detail,
		RequestID: opts.RequestID,
	})
	if err != nil {
		infra.CaptureException(span, err)
		return "", &domain.UpstreamError{Provider: provider, Err: err}
	}
	if asset == nil || (len(asset.Data) == 0 && asset.URL == "") {
		err := &domain.UpstreamError{Provider: provider, Err: errors.New("provider returned no image")}
		infra.CaptureException(span, err)
		return "", err
	}
	if len(asset.Data) == 0 {
		// Hosted results expire upstream; keep a copy when it can be fetched.
		hosted, err := s.fetcher.Fetch(ctx, asset.URL)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider", provider).Msg("image: keeping provider hosted url")
			return asset.URL, nil
		}
		asset.Data = hosted.Data
		if asset.Format == "" || strings.HasPrefix(hosted.ContentType, "image/") {
			asset.Format = hosted.ContentType
		}
	}

	key := "remix/" + storageName(opts.RequestID)
	format := asset.Format
	if format == "" {
		format = http.DetectContentType(asset.Data)
	}
	savedKey, err := s.store.Upload(ctx, key, asset.Data, format)
	if err != nil {
		infra.CaptureException(span, err)
		return "", fmt.Errorf("store generated image: %w", err)
	}
	s.logger.Debug().
		Str("provider", provider).
		Str("key", savedKey).
		Int("bytes", len(asset.Data)).
		Msg("image: stored generated asset")
	return s.store.PublicURL(savedKey), nil
}

func storageName(requestID string) string {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return uuid.NewString()
	}
	return strings.ReplaceAll(requestID, "..", "")
}
