package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"coloringbook/internal/domain"
	"coloringbook/internal/middleware"
	"coloringbook/internal/photobook"
	"coloringbook/internal/taskqueue"
)

type photobookCreateRequest struct {
	Images      []domain.PhotobookImage `json:"images"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	UserID      string                  `json:"userId"`
}

type photobookCreateResponse struct {
	JobID      string           `json:"jobId"`
	Status     domain.JobStatus `json:"status"`
	PollURL    string           `json:"pollUrl"`
	TotalCount int              `json:"totalCount"`
}

func (a *App) PhotobookCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req photobookCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if body := strings.TrimSpace(req.UserID); body != "" && body != userID {
		a.fail(w, r, domain.ErrForbidden)
		return
	}

	job, err := a.Photobook.Enqueue(r.Context(), photobook.EnqueueRequest{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Locale:      middleware.LocaleFromContext(r.Context()),
		Images:      req.Images,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.dispatch(r, taskqueue.TypePhotobookProcess, job.ID)
	a.logger(r).Info().
		Str("job_id", job.ID).
		Str("locale", job.Locale).
		Str("country", middleware.CountryFromContext(r.Context())).
		Int("pages", job.TotalCount).
		Msg("photobook: enqueued")

	a.json(w, http.StatusAccepted, photobookCreateResponse{
		JobID:      job.ID,
		Status:     job.Status,
		PollURL:    "/v1/photobook-jobs/" + job.ID,
		TotalCount: job.TotalCount,
	})
}

func (a *App) PhotobookStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	status, err := a.Photobook.GetStatus(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, status)
}
