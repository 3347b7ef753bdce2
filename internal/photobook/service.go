// Package photobook assembles generated coloring pages into a downloadable
// PDF on a background queue.
package photobook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"coloringbook/internal/domain"
	"coloringbook/internal/httpfetch"
	"coloringbook/internal/infra"
	"coloringbook/internal/storage"
)

// Config tunes the service.
type Config struct {
	StaleAfter    time.Duration
	DefaultLocale string
}

// EnqueueRequest is the input of Enqueue.
type EnqueueRequest struct {
	UserID      string                  `json:"userId" validate:"required"`
	Title       string                  `json:"title" validate:"required,max=200"`
	Description string                  `json:"description,omitempty" validate:"max=2000"`
	Locale      string                  `json:"locale,omitempty"`
	Images      []domain.PhotobookImage `json:"images" validate:"min=1,max=200"`
}

// Status is the owner-facing progress snapshot of a job.
type Status struct {
	JobID          string           `json:"jobId"`
	Status         domain.JobStatus `json:"status"`
	Title          string           `json:"title"`
	ProcessedCount int              `json:"processedCount"`
	TotalCount     int              `json:"totalCount"`
	DownloadURL    *string          `json:"downloadUrl"`
	ErrorMessage   *string          `json:"errorMessage"`
	CreatedAt      time.Time        `json:"createdAt"`
	StartedAt      *time.Time       `json:"startedAt"`
	CompletedAt    *time.Time       `json:"completedAt"`
}

// Service enqueues, processes and reports photobook jobs.
type Service struct {
	jobs    domain.PhotobookJobRepository
	fetcher httpfetch.Fetcher
	store   storage.Store
	logger  zerolog.Logger
	cfg     Config
	now     func() time.Time

	tracer trace.Tracer
	pages  metric.Int64Counter
}

func NewService(jobs domain.PhotobookJobRepository, fetcher httpfetch.Fetcher, store storage.Store, logger zerolog.Logger, cfg Config) *Service {
	counter, err := otel.Meter("coloringbook/photobook").Int64Counter("photobook_pages",
		metric.WithDescription("Photobook pages attempted, by outcome."))
	if err != nil {
		logger.Warn().Err(err).Msg("photobook: page counter unavailable")
	}
	return &Service{
		jobs:    jobs,
		fetcher: fetcher,
		store:   store,
		logger:  infra.Component(logger, "photobook"),
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		tracer:  otel.Tracer("coloringbook/photobook"),
		pages:   counter,
	}
}

// Enqueue validates req and records a queued job. Nothing is stored when
// validation fails.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.PhotobookJob, error) {
	ctx, span := s.tracer.Start(ctx, "photobook.enqueue")
	defer span.End()

	req.UserID = strings.TrimSpace(req.UserID)
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	verr := domain.ValidateStruct(req)
	images := make([]domain.PhotobookImage, len(req.Images))
	for i, img := range req.Images {
		img.ImageURL = strings.TrimSpace(img.ImageURL)
		img.Name = strings.TrimSpace(img.Name)
		if !isHTTPURL(img.ImageURL) {
			verr.Add(fmt.Sprintf("images[%d].imageUrl", i), "must be an http or https URL")
		}
		images[i] = img
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	job := &domain.PhotobookJob{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Locale:      labelsFor(req.Locale, s.cfg.DefaultLocale).code(),
		Images:      images,
		Status:      domain.JobStatusQueued,
		TotalCount:  len(images),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	span.SetAttributes(attribute.String("job.id", job.ID), attribute.Int("photobook.images", len(images)))
	if err := s.jobs.Create(ctx, job); err != nil {
		infra.CaptureException(span, err)
		return nil, &domain.PersistenceError{Op: "create photobook job", Err: err}
	}
	s.logger.Info().Str("job_id", job.ID).Int("images", len(images)).Msg("photobook job queued")
	return job, nil
}

// GetStatus returns the snapshot of a job owned by ownerID.
func (s *Service) GetStatus(ctx context.Context, jobID, ownerID string) (*Status, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	return &Status{
		JobID:          job.ID,
		Status:         job.Status,
		Title:          job.Title,
		ProcessedCount: job.ProcessedCount,
		TotalCount:     job.TotalCount,
		DownloadURL:    job.PDFURL,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}, nil
}

// ProcessQueue drains pending jobs oldest first and returns how many were
// processed. An empty queue is not an error.
func (s *Service) ProcessQueue(ctx context.Context) (int, error) {
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		job, err := s.jobs.ClaimNext(ctx, s.staleBefore())
		if errors.Is(err, domain.ErrNoJobAvailable) {
			return processed, nil
		}
		if err != nil {
			return processed, fmt.Errorf("claim photobook job: %w", err)
		}
		if err := s.process(ctx, job); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("photobook job finished with error")
		}
		processed++
	}
}

// ProcessJob processes one job by id. A job that is already claimed or
// finished is left alone.
func (s *Service) ProcessJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Claim(ctx, jobID, s.staleBefore())
	if errors.Is(err, domain.ErrAlreadyClaimed) {
		s.logger.Debug().Str("job_id", jobID).Msg("photobook job not claimable")
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim photobook job: %w", err)
	}
	return s.process(ctx, job)
}

// HandleTask adapts ProcessJob to the task dispatcher.
func (s *Service) HandleTask(ctx context.Context, jobID string) error {
	return s.ProcessJob(ctx, jobID)
}

func (s *Service) staleBefore() time.Time {
	if s.cfg.StaleAfter <= 0 {
		return time.Time{}
	}
	return s.now().Add(-s.cfg.StaleAfter)
}

func (s *Service) process(ctx context.Context, job *domain.PhotobookJob) error {
	ctx, span := s.tracer.Start(ctx, "photobook.process", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.Int("photobook.images", len(job.Images)),
	))
	defer span.End()
	logger := s.logger.With().Str("job_id", job.ID).Logger()
	logger.Info().Int("images", len(job.Images)).Msg("photobook job started")

	doc := newDocument(job.Title, job.Description, labelsFor(job.Locale, s.cfg.DefaultLocale), s.now(), len(job.Images))
	processed := 0
	for i, img := range job.Images {
		if err := s.embed(ctx, doc, i, img); err != nil {
			if errors.Is(err, errDocument) {
				infra.CaptureException(span, err)
				return s.fail(ctx, span, job.ID, processed, "render pdf: "+err.Error(), logger)
			}
			s.count(ctx, "skipped")
			logger.Warn().Err(err).Int("page", i).Str("image_url", img.ImageURL).Msg("photobook: skipping image")
			continue
		}
		processed++
		s.count(ctx, "embedded")
		if err := s.jobs.UpdateProgress(ctx, job.ID, processed); err != nil {
			logger.Warn().Err(err).Int("processed", processed).Msg("photobook: persist progress failed")
		}
	}
	span.SetAttributes(attribute.Int("photobook.processed", processed))

	if processed == 0 {
		return s.fail(ctx, span, job.ID, 0, "none of the images could be added to the photobook", logger)
	}

	data, err := doc.Bytes()
	if err != nil {
		infra.CaptureException(span, err)
		return s.fail(ctx, span, job.ID, processed, "render pdf: "+err.Error(), logger)
	}
	key := fmt.Sprintf("photobooks/%s/%s.pdf", job.UserID, job.ID)
	savedKey, err := s.store.Upload(ctx, key, data, "application/pdf")
	if err != nil {
		infra.CaptureException(span, err)
		return s.fail(ctx, span, job.ID, processed, "upload pdf: "+err.Error(), logger)
	}
	pdfURL := s.store.PublicURL(savedKey)
	if err := s.jobs.Complete(ctx, job.ID, processed, savedKey, pdfURL); err != nil {
		infra.CaptureException(span, err)
		return &domain.PersistenceError{Op: "complete photobook job", Err: err}
	}
	logger.Info().
		Int("processed", processed).
		Int("total", len(job.Images)).
		Int("bytes", len(data)).
		Str("pdf_url", pdfURL).
		Msg("photobook job completed")
	return nil
}

func (s *Service) embed(ctx context.Context, doc *document, index int, img domain.PhotobookImage) error {
	res, err := s.fetcher.Fetch(ctx, img.ImageURL)
	if err != nil {
		return err
	}
	return doc.addImage(res.Data, captionFor(img.Name, img.ImageURL, index))
}

func (s *Service) fail(ctx context.Context, span trace.Span, jobID string, processed int, message string, logger zerolog.Logger) error {
	span.SetAttributes(attribute.String("photobook.error", message))
	logger.Warn().Int("processed", processed).Str("reason", message).Msg("photobook job failed")
	if err := s.jobs.Fail(ctx, jobID, processed, message); err != nil {
		infra.CaptureException(span, err)
		return &domain.PersistenceError{Op: "fail photobook job", Err: err}
	}
	return nil
}

func (s *Service) count(ctx context.Context, status string) {
	if s.pages == nil {
		return
	}
	s.pages.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
