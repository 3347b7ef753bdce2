package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"coloringbook/internal/domain"
	"coloringbook/internal/http/handlers"
	"coloringbook/internal/infra"
	"coloringbook/internal/middleware"
	"coloringbook/internal/photobook"
	"coloringbook/internal/remix"
	"coloringbook/internal/taskqueue"
)

const testSecret = "router-secret"

type fakeRemix struct {
	jobs map[string]*domain.RemixJob
}

func (f *fakeRemix) Create(ctx context.Context, req remix.CreateRequest) (*domain.RemixJob, error) {
	if len(req.Prompts) == 0 {
		return nil, domain.NewValidationError("prompts", "must contain at least 1 item(s)")
	}
	job := &domain.RemixJob{
		ID:       "remix-1",
		UserID:   req.UserID,
		ImageURL: req.ImageURL,
		Prompts:  req.Prompts,
		Status:   domain.JobStatusQueued,
		Results:  domain.SkeletonSlots(req.Prompts),
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeRemix) Get(ctx context.Context, jobID, ownerID string) (*domain.RemixJob, error) {
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (f *fakeRemix) Process(ctx context.Context, jobID string) (*domain.RemixJob, error) {
	job := f.jobs[jobID]
	url := "https://cdn.example.com/out.png"
	job.Results[0].Succeed(url, time.Now())
	job.Status = domain.JobStatusCompleted
	return job, nil
}

type fakePhotobook struct{}

func (fakePhotobook) Enqueue(ctx context.Context, req photobook.EnqueueRequest) (*domain.PhotobookJob, error) {
	return &domain.PhotobookJob{ID: "book-1", UserID: req.UserID, Status: domain.JobStatusQueued, TotalCount: len(req.Images), Locale: req.Locale}, nil
}

func (fakePhotobook) GetStatus(ctx context.Context, jobID, ownerID string) (*photobook.Status, error) {
	if jobID != "book-1" || ownerID != "user-1" {
		return nil, domain.ErrNotFound
	}
	return &photobook.Status{JobID: jobID, Status: domain.JobStatusProcessing, ProcessedCount: 1, TotalCount: 2}, nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []taskqueue.Task
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, task taskqueue.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *recordingDispatcher) {
	t.Helper()
	tasks := &recordingDispatcher{}
	app := &handlers.App{
		Remix:     &fakeRemix{jobs: map[string]*domain.RemixJob{}},
		Photobook: fakePhotobook{},
		Tasks:     tasks,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# HELP remix_slots_total\n"))
		}),
		Logger: infra.NopLogger(),
	}
	return NewRouter(app, Options{
		JWTSecret:       testSecret,
		RateLimitPerMin: 1000,
		DefaultLocale:   "en",
		Logger:          infra.NopLogger(),
	}), tasks
}

func authed(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	token, err := middleware.SignJWT(testSecret, "user-1", "", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, path := range []string{"/v1/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s code = %d", path, rec.Code)
		}
	}
}

func TestJobRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/photobook-jobs/book-1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestPhotobookRoutes(t *testing.T) {
	router, tasks := newTestRouter(t)

	body := map[string]any{
		"title":  "Zoo",
		"images": []map[string]string{{"id": "1", "name": "lion.png", "imageUrl": "https://cdn.example.com/lion.png"}},
	}
	req := authed(t, http.MethodPost, "/v1/photobook-jobs", body)
	req.Header.Set("Accept-Language", "id-ID")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create code = %d body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		JobID      string `json:"jobId"`
		Status     string `json:"status"`
		PollURL    string `json:"pollUrl"`
		TotalCount int    `json:"totalCount"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.JobID != "book-1" || created.PollURL != "/v1/photobook-jobs/book-1" || created.TotalCount != 1 {
		t.Fatalf("created = %+v", created)
	}
	if len(tasks.tasks) != 1 || tasks.tasks[0] != (taskqueue.Task{Type: taskqueue.TypePhotobookProcess, JobID: "book-1"}) {
		t.Fatalf("tasks = %+v", tasks.tasks)
	}

	forbidden := authed(t, http.MethodPost, "/v1/photobook-jobs", map[string]any{"userId": "user-2", "title": "x"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, forbidden)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mismatched userId code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(t, http.MethodGet, "/v1/photobook-jobs/book-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(t, http.MethodGet, "/v1/photobook-jobs/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job code = %d", rec.Code)
	}
}

func TestRemixRoutes(t *testing.T) {
	router, tasks := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(t, http.MethodPost, "/v1/prompt-remix", map[string]any{
		"imageUrl": "https://cdn.example.com/a.png",
		"prompts":  []string{"beach", "forest"},
	}))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("batch code = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(tasks.tasks) != 1 || tasks.tasks[0].Type != taskqueue.TypeRemixProcess {
		t.Fatalf("tasks = %+v", tasks.tasks)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(t, http.MethodGet, "/v1/prompt-remix/remix-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get code = %d", rec.Code)
	}
	var snapshot struct {
		Results []domain.RemixSlot `json:"results"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &snapshot)
	if len(snapshot.Results) != 2 || snapshot.Results[1].Prompt != "forest" {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(t, http.MethodPost, "/v1/prompt-remix/remix-1/resume", nil))
	if rec.Code != http.StatusAccepted || len(tasks.tasks) != 2 {
		t.Fatalf("resume code = %d tasks = %d", rec.Code, len(tasks.tasks))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(t, http.MethodPost, "/v1/prompt-remix", map[string]any{"imageUrl": "https://cdn.example.com/a.png"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("validation code = %d", rec.Code)
	}
	var errBody struct {
		Error struct {
			Code   string            `json:"code"`
			Fields map[string]string `json:"fields"`
		} `json:"error"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &errBody)
	if errBody.Error.Code != "validation_error" || errBody.Error.Fields["prompts"] == "" {
		t.Fatalf("error body = %s", rec.Body.String())
	}
}

func TestRemixSinglePromptIsSynchronous(t *testing.T) {
	router, tasks := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(t, http.MethodPost, "/v1/prompt-remix", map[string]any{
		"imageUrl":    "https://cdn.example.com/a.png",
		"remixPrompt": "on the moon",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Success  bool   `json:"success"`
		ImageURL string `json:"imageUrl"`
		Status   string `json:"status"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Success || body.ImageURL != "https://cdn.example.com/out.png" || body.Status != "completed" {
		t.Fatalf("body = %+v", body)
	}
	if len(tasks.tasks) != 0 {
		t.Fatalf("single prompt should not dispatch, got %+v", tasks.tasks)
	}
}
