package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"coloringbook/internal/domain"
	"coloringbook/internal/middleware"
	"coloringbook/internal/photobook"
	"coloringbook/internal/remix"
	"coloringbook/internal/taskqueue"
)

const maxBodyBytes = 1 << 20

// RemixRunner is the remix job API used by the handlers.
type RemixRunner interface {
	Create(ctx context.Context, req remix.CreateRequest) (*domain.RemixJob, error)
	Get(ctx context.Context, jobID, ownerID string) (*domain.RemixJob, error)
	Process(ctx context.Context, jobID string) (*domain.RemixJob, error)
}

// PhotobookQueue is the photobook job API used by the handlers.
type PhotobookQueue interface {
	Enqueue(ctx context.Context, req photobook.EnqueueRequest) (*domain.PhotobookJob, error)
	GetStatus(ctx context.Context, jobID, ownerID string) (*photobook.Status, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Remix     RemixRunner
	Photobook PhotobookQueue
	Tasks     taskqueue.Dispatcher
	DB        Pinger
	Metrics   http.Handler
	Logger    zerolog.Logger
}

type errorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]errorPayload{"error": {Code: errCode, Message: message}})
}

// fail maps a service error onto the HTTP error contract.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		a.json(w, http.StatusBadRequest, map[string]errorPayload{"error": {
			Code:    "validation_error",
			Message: "request validation failed",
			Fields:  verr.Fields,
		}})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "not allowed")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
	case errors.Is(err, domain.ErrUpstreamGeneration):
		a.error(w, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		a.logger(r).Error().Err(err).Str("path", r.URL.Path).Msg("handler: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return false
	}
	return true
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// logger prefers the request-scoped logger installed by middleware.Logger.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

// dispatch schedules background work. Failures are logged: photobook jobs are
// picked up by the worker sweep, remix jobs can be resumed.
func (a *App) dispatch(r *http.Request, taskType, jobID string) {
	if a.Tasks == nil {
		return
	}
	if err := a.Tasks.Dispatch(r.Context(), taskqueue.Task{Type: taskType, JobID: jobID}); err != nil {
		a.logger(r).Warn().Err(err).Str("task_type", taskType).Str("job_id", jobID).Msg("handler: dispatch failed")
	}
}
