package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"coloringbook/internal/domain"
	"coloringbook/internal/remix"
	"coloringbook/internal/taskqueue"
)

type remixCreateRequest struct {
	ImageURL    string   `json:"imageUrl"`
	Prompts     []string `json:"prompts"`
	RemixPrompt string   `json:"remixPrompt"`
	ImageID     *string  `json:"imageId"`
	Provider    string   `json:"provider"`
}

type remixJobResponse struct {
	JobID        string             `json:"jobId"`
	Status       domain.JobStatus   `json:"status"`
	PollURL      string             `json:"pollUrl"`
	ImageID      *string            `json:"imageId,omitempty"`
	ImageURL     string             `json:"imageUrl"`
	Prompts      []string           `json:"prompts"`
	Provider     string             `json:"provider,omitempty"`
	Results      []domain.RemixSlot `json:"results"`
	ErrorMessage *string            `json:"errorMessage"`
	CreatedAt    time.Time          `json:"createdAt"`
	StartedAt    *time.Time         `json:"startedAt"`
	CompletedAt  *time.Time         `json:"completedAt"`
}

type remixSingleResponse struct {
	Success  bool             `json:"success"`
	JobID    string           `json:"jobId"`
	ImageURL string           `json:"imageUrl"`
	Status   domain.JobStatus `json:"status"`
}

func newRemixJobResponse(job *domain.RemixJob) remixJobResponse {
	return remixJobResponse{
		JobID:        job.ID,
		Status:       job.Status,
		PollURL:      "/v1/prompt-remix/" + job.ID,
		ImageID:      job.ImageID,
		ImageURL:     job.ImageURL,
		Prompts:      job.Prompts,
		Provider:     job.Provider,
		Results:      job.Results,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
}

// RemixCreate accepts a batch of prompts for background processing, or a
// single legacy remixPrompt that is processed before responding.
func (a *App) RemixCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req remixCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	single := len(req.Prompts) == 0 && strings.TrimSpace(req.RemixPrompt) != ""
	prompts := req.Prompts
	if single {
		prompts = []string{req.RemixPrompt}
	}

	job, err := a.Remix.Create(r.Context(), remix.CreateRequest{
		UserID:   userID,
		ImageID:  req.ImageID,
		ImageURL: req.ImageURL,
		Prompts:  prompts,
		Provider: req.Provider,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if !single {
		a.dispatch(r, taskqueue.TypeRemixProcess, job.ID)
		a.json(w, http.StatusAccepted, newRemixJobResponse(job))
		return
	}

	processed, err := a.Remix.Process(r.Context(), job.ID)
	if err != nil && (processed == nil || !errors.Is(err, domain.ErrPersistence)) {
		a.fail(w, r, err)
		return
	}
	if err != nil {
		a.logger(r).Warn().Err(err).Str("job_id", job.ID).Msg("remix: final status not persisted")
	}
	slot := processed.Results[0]
	if slot.Status != domain.SlotStatusSucceeded || slot.ImageURL == nil {
		msg := "image generation failed"
		if slot.Error != nil && *slot.Error != "" {
			msg = *slot.Error
		}
		a.error(w, http.StatusBadGateway, "upstream_error", msg)
		return
	}
	a.json(w, http.StatusOK, remixSingleResponse{
		Success:  true,
		JobID:    processed.ID,
		ImageURL: *slot.ImageURL,
		Status:   processed.Status,
	})
}

func (a *App) RemixStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Remix.Get(r.Context(), chi.URLParam(r, "jobId"), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newRemixJobResponse(job))
}

// RemixResume schedules another pass over a job's unfinished slots.
func (a *App) RemixResume(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Remix.Get(r.Context(), chi.URLParam(r, "jobId"), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if job.Status != domain.JobStatusCompleted {
		a.dispatch(r, taskqueue.TypeRemixProcess, job.ID)
	}
	a.json(w, http.StatusAccepted, newRemixJobResponse(job))
}
