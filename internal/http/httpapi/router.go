package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"coloringbook/internal/http/handlers"
	"coloringbook/internal/middleware"
)

// Options configures the router's middleware stack.
type Options struct {
	JWTSecret       string
	CORSOrigins     []string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	// StaticDir is served under /static when set (filesystem storage only).
	StaticDir string
	Logger    zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/metrics", app.MetricsHandler)

	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
				middleware.AuthJWT(opts.JWTSecret),
			)

			r.Route("/photobook-jobs", func(r chi.Router) {
				r.Post("/", app.PhotobookCreate)
				r.Get("/{id}", app.PhotobookStatus)
			})

			r.Route("/prompt-remix", func(r chi.Router) {
				r.Post("/", app.RemixCreate)
				r.Get("/{jobId}", app.RemixStatus)
				r.Post("/{jobId}/resume", app.RemixResume)
			})
		})
	})

	return r
}
