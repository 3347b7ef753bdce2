// Package remix runs prompt-remix jobs: one source coloring page regenerated
// under several scene prompts, with partial failure and resume.
package remix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"coloringbook/internal/domain"
	"coloringbook/internal/infra"
	"coloringbook/internal/providers/image"
)

// Generator produces one remixed image and returns its public URL.
type Generator interface {
	Generate(ctx context.Context, imageURL, prompt string, opts image.Options) (string, error)
}

// Config tunes the runner.
type Config struct {
	// Concurrency is the number of slots generated in parallel (1 = sequential).
	Concurrency       int
	GenerationTimeout time.Duration
	// StaleAfter lets a processing job whose heartbeat is older than this be
	// claimed again. Zero disables reclaiming.
	StaleAfter time.Duration
	Detail     string
}

// CreateRequest is the input of Create.
type CreateRequest struct {
	UserID   string   `json:"userId" validate:"required"`
	ImageID  *string  `json:"imageId,omitempty" validate:"omitempty,uuid"`
	ImageURL string   `json:"imageUrl" validate:"required,http_url"`
	Prompts  []string `json:"prompts" validate:"min=1,max=10,dive,required"`
	Provider string   `json:"provider,omitempty"`
}

// Runner creates, reads and processes remix jobs.
type Runner struct {
	jobs      domain.RemixJobRepository
	images    domain.ImageVariantRepository
	generator Generator
	logger    zerolog.Logger
	cfg       Config
	now       func() time.Time

	tracer trace.Tracer
	slots  metric.Int64Counter
}

// NewRunner wires a runner. images may be nil when variants are not tracked.
func NewRunner(jobs domain.RemixJobRepository, images domain.ImageVariantRepository, generator Generator, logger zerolog.Logger, cfg Config) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Concurrency > domain.MaxRemixPrompts {
		cfg.Concurrency = domain.MaxRemixPrompts
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 120 * time.Second
	}
	counter, err := otel.Meter("coloringbook/remix").Int64Counter("remix_slots",
		metric.WithDescription("Remix slots processed, by outcome."))
	if err != nil {
		logger.Warn().Err(err).Msg("remix: slot counter unavailable")
	}
	return &Runner{
		jobs:      jobs,
		images:    images,
		generator: generator,
		logger:    infra.Component(logger, "remix"),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		tracer:    otel.Tracer("coloringbook/remix"),
		slots:     counter,
	}
}

// Create validates req and persists a queued job with one skeleton slot per prompt.
func (r *Runner) Create(ctx context.Context, req CreateRequest) (*domain.RemixJob, error) {
	ctx, span := r.tracer.Start(ctx, "remix.create")
	defer span.End()

	req.UserID = strings.TrimSpace(req.UserID)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.Provider = strings.TrimSpace(req.Provider)
	if req.ImageID != nil && strings.TrimSpace(*req.ImageID) == "" {
		req.ImageID = nil
	}
	verr := domain.ValidateStruct(req)
	prompts := make([]string, len(req.Prompts))
	for i, p := range req.Prompts {
		prompts[i] = strings.TrimSpace(p)
		if prompts[i] == "" {
			verr.Add(fmt.Sprintf("prompts[%d]", i), "must not be blank")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := r.now()
	job := &domain.RemixJob{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ImageID:   req.ImageID,
		ImageURL:  req.ImageURL,
		Prompts:   prompts,
		Provider:  req.Provider,
		Status:    domain.JobStatusQueued,
		Results:   domain.SkeletonSlots(prompts),
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.Int("remix.prompts", len(prompts)),
		attribute.String("remix.provider", job.Provider),
	)
	if err := r.jobs.Create(ctx, job); err != nil {
		infra.CaptureException(span, err)
		return nil, &domain.PersistenceError{Op: "create remix job", Err: err}
	}
	r.logger.Info().Str("job_id", job.ID).Int("prompts", len(prompts)).Msg("remix job queued")
	return job, nil
}

// Get returns the job when it belongs to ownerID, ErrNotFound otherwise.
func (r *Runner) Get(ctx context.Context, jobID, ownerID string) (*domain.RemixJob, error) {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	job.Results = job.NormalizedResults()
	return job, nil
}

// HandleTask adapts Process to the task dispatcher.
func (r *Runner) HandleTask(ctx context.Context, jobID string) error {
	_, err := r.Process(ctx, jobID)
	return err
}

// Process claims the job and generates every slot that has not succeeded yet.
// Calling it on a completed job, or on one another worker is processing,
// returns the current snapshot untouched.
func (r *Runner) Process(ctx context.Context, jobID string) (*domain.RemixJob, error) {
	ctx, span := r.tracer.Start(ctx, "remix.process", trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()
	logger := r.logger.With().Str("job_id", jobID).Logger()

	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			infra.CaptureException(span, err)
			err = fmt.Errorf("load remix job: %w", err)
		}
		return nil, err
	}

	staleBefore := r.staleBefore()
	switch {
	case job.Status == domain.JobStatusCompleted:
		return job, nil
	case job.Status == domain.JobStatusProcessing && !domain.IsStale(job.Status, job.UpdatedAt, staleBefore):
		logger.Debug().Msg("remix job already processing")
		return job, nil
	}

	claimed, err := r.jobs.Claim(ctx, jobID, job.NormalizedResults(), job.UpdatedAt, staleBefore)
	if errors.Is(err, domain.ErrAlreadyClaimed) {
		logger.Debug().Msg("remix job claimed by another worker")
		return r.jobs.Get(ctx, jobID)
	}
	if err != nil {
		infra.CaptureException(span, err)
		return nil, &domain.PersistenceError{Op: "claim remix job", Err: err}
	}
	job = claimed
	job.Results = job.NormalizedResults()
	span.SetAttributes(
		attribute.Int("remix.prompts", len(job.Prompts)),
		attribute.String("remix.provider", job.Provider),
	)

	variants := r.seedVariants(ctx, job, logger)

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for i := range job.Results {
		if job.Results[i].Status == domain.SlotStatusSucceeded {
			continue
		}
		i := i
		g.Go(func() error {
			r.processSlot(ctx, job, i, variants, logger)
			return nil
		})
	}
	_ = g.Wait()

	return r.finish(ctx, span, job, logger)
}

func (r *Runner) staleBefore() time.Time {
	if r.cfg.StaleAfter <= 0 {
		return time.Time{}
	}
	return r.now().Add(-r.cfg.StaleAfter)
}

// processSlot owns job.Results[index] for its lifetime; no other goroutine
// touches that element.
func (r *Runner) processSlot(ctx context.Context, job *domain.RemixJob, index int, variants *variantSet, logger zerolog.Logger) {
	slot := &job.Results[index]
	ctx, span := r.tracer.Start(ctx, "remix.slot", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.Int("remix.slot", index),
	))
	defer span.End()

	slot.Start(r.now())
	r.persistSlot(ctx, job.ID, index, *slot, logger)

	genCtx, cancel := context.WithTimeout(ctx, r.cfg.GenerationTimeout)
	url, err := r.generator.Generate(genCtx, job.ImageURL, image.BuildRemixPrompt(slot.Prompt), image.Options{
		Provider:  job.Provider,
		Detail:    r.cfg.Detail,
		RequestID: fmt.Sprintf("%s/%02d", job.ID, index),
	})
	timedOut := errors.Is(genCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		msg := err.Error()
		if timedOut {
			msg = fmt.Sprintf("generation timed out after %s", r.cfg.GenerationTimeout)
		}
		slot.Fail(msg, r.now())
		infra.CaptureException(span, err)
		r.count(ctx, domain.SlotStatusFailed)
		logger.Warn().Err(err).Int("slot", index).Msg("remix slot failed")
	} else {
		slot.Succeed(url, r.now())
		r.count(ctx, domain.SlotStatusSucceeded)
		variants.add(ctx, url, slot.Prompt)
	}
	r.persistSlot(ctx, job.ID, index, *slot, logger)
}

func (r *Runner) persistSlot(ctx context.Context, jobID string, index int, slot domain.RemixSlot, logger zerolog.Logger) {
	if err := r.jobs.UpdateSlot(ctx, jobID, index, slot); err != nil {
		logger.Warn().Err(err).Int("slot", index).Str("slot_status", string(slot.Status)).Msg("remix: persist slot failed")
	}
}

func (r *Runner) finish(ctx context.Context, span trace.Span, job *domain.RemixJob, logger zerolog.Logger) (*domain.RemixJob, error) {
	succeeded, failed := job.Counts()
	status := domain.JobStatusFailed
	if succeeded == len(job.Results) {
		status = domain.JobStatusCompleted
	}
	var errMsg *string
	if summary := job.FailureSummary(); summary != "" {
		errMsg = &summary
	}
	now := r.now()
	job.Status = status
	job.ErrorMessage = errMsg
	job.CompletedAt = &now
	job.UpdatedAt = now
	span.SetAttributes(
		attribute.Int("remix.succeeded", succeeded),
		attribute.Int("remix.failed", failed),
	)

	if err := r.jobs.Finish(ctx, job.ID, status, errMsg, now); err != nil {
		infra.CaptureException(span, err)
		logger.Error().Err(err).Str("status", string(status)).Msg("remix: persist final status failed")
		return job, &domain.PersistenceError{Op: "finish remix job", Err: err}
	}
	logger.Info().
		Str("status", string(status)).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("remix job finished")
	return job, nil
}

func (r *Runner) count(ctx context.Context, status domain.SlotStatus) {
	if r.slots == nil {
		return
	}
	r.slots.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}

func (r *Runner) seedVariants(ctx context.Context, job *domain.RemixJob, logger zerolog.Logger) *variantSet {
	set := &variantSet{repo: r.images, logger: logger}
	if job.ImageID == nil || r.images == nil {
		return set
	}
	set.imageID = *job.ImageID
	current, err := r.images.GetVariants(ctx, set.imageID)
	if err != nil {
		logger.Warn().Err(err).Str("image_id", set.imageID).Msg("remix: load image variants failed")
		return set
	}
	set.variants = current
	return set
}

// variantSet accumulates succeeded outputs and mirrors them onto the owning
// image. Writes are best effort.
type variantSet struct {
	mu       sync.Mutex
	repo     domain.ImageVariantRepository
	imageID  string
	variants domain.Variants
	logger   zerolog.Logger
}

func (v *variantSet) add(ctx context.Context, url, prompt string) {
	if v.imageID == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.variants.Append(url, prompt) {
		return
	}
	if err := v.repo.SaveVariants(ctx, v.imageID, v.variants); err != nil {
		v.logger.Warn().Err(err).Str("image_id", v.imageID).Msg("remix: save image variants failed")
	}
}
