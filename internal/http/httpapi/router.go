package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"asseto/internal/http/handlers"
	"asseto/internal/infra"
	"asseto/internal/middleware"
)

// Options configures the router middleware stack.
type Options struct {
	Logger          *infra.Logger
	CountryLookup   middleware.CountryLookup
	DefaultLocale   string
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	// Generation and export are expensive; reads are not limited.
	limited := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Route("/v1/project", func(r chi.Router) {
		r.Get("/", app.GetProject)
		r.Put("/", app.PutProject)
		r.With(limited).Post("/refine-description", app.RefineDescription)
		r.With(limited).Post("/sections/{id}/suggest", app.SuggestSection)
		r.With(limited).Post("/style", app.AnalyzeStyle)
	})

	r.Route("/v1/batches", func(r chi.Router) {
		r.With(limited).Post("/", app.StartBatch)
		r.Get("/current", app.CurrentBatch)
	})

	r.Route("/v1/images", func(r chi.Router) {
		r.Get("/", app.ListImages)
		r.With(limited).Post("/{id}/regenerate", app.RegenerateImage)
		r.Get("/{id}/download", app.DownloadImage)
	})

	r.Route("/v1/export", func(r chi.Router) {
		r.Use(limited)
		r.Get("/", app.ExportAll)
		r.Get("/sections/{id}", app.ExportSection)
	})

	return r
}
