package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"asseto/internal/batch"
	"asseto/internal/domain"
	"asseto/internal/export"
	"asseto/internal/infra"
	"asseto/internal/providers/prompt"
	"asseto/internal/session"
)

// maxBodyBytes bounds JSON request bodies; style references carry base64 images.
const maxBodyBytes = 32 << 20

// Session is the part of session.Session the HTTP surface uses.
type Session interface {
	Project() domain.ProjectConfig
	UpdateProject(ctx context.Context, cfg domain.ProjectConfig) (domain.ProjectConfig, error)
	RefineDescription(ctx context.Context, locale string) (domain.ProjectConfig, error)
	SuggestSection(ctx context.Context, sectionID, locale string) (domain.ProjectConfig, error)
	AnalyzeStyle(ctx context.Context, images []prompt.ReferenceImage) (domain.ProjectConfig, error)
	StartBatch(ctx context.Context) (*batch.Batch, error)
	Status() session.Status
	Images() []domain.GeneratedImage
	Regenerate(ctx context.Context, id string) (batch.Outcome, error)
	Download(id string, format domain.ExportFormat) (string, []byte, error)
	ExportAll(ctx context.Context, format domain.ExportFormat) (export.Result, error)
	ExportSection(ctx context.Context, sectionID string, format domain.ExportFormat) (export.Result, error)
}

type App struct {
	Session Session
	Logger  *infra.Logger
}

func NewApp(s Session, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{Session: s, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": errCode, "message": message}})
}

// fail maps a domain error onto a response.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidProject), errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, session.ErrNoReferenceImages), errors.Is(err, prompt.ErrInvalidDataURL):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrPending), errors.Is(err, domain.ErrNoArtifact):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrEmptyExport):
		a.error(w, http.StatusUnprocessableEntity, "empty_export", err.Error())
	case errors.Is(err, session.ErrStyleUnavailable):
		a.error(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	case errors.Is(err, domain.ErrProviderFailure):
		a.error(w, http.StatusBadGateway, "provider_failure", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.error(w, http.StatusServiceUnavailable, "cancelled", err.Error())
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("http: unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}
