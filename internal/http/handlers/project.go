package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"asseto/internal/domain"
	"asseto/internal/middleware"
	"asseto/internal/providers/prompt"
)

type styleRequest struct {
	Images []string `json:"images"`
}

func (a *App) GetProject(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Session.Project())
}

func (a *App) PutProject(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ProjectConfig
	if !a.decode(w, r, &cfg) {
		return
	}
	updated, err := a.Session.UpdateProject(r.Context(), cfg)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, updated)
}

func (a *App) RefineDescription(w http.ResponseWriter, r *http.Request) {
	project, err := a.Session.RefineDescription(r.Context(), middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, project)
}

func (a *App) SuggestSection(w http.ResponseWriter, r *http.Request) {
	project, err := a.Session.SuggestSection(r.Context(), chi.URLParam(r, "id"), middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, project)
}

// AnalyzeStyle accepts reference images as data URLs.
func (a *App) AnalyzeStyle(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.Images) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "images required")
		return
	}
	refs := make([]prompt.ReferenceImage, 0, len(req.Images))
	for _, raw := range req.Images {
		ref, err := prompt.ParseDataURL(raw)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		refs = append(refs, ref)
	}
	project, err := a.Session.AnalyzeStyle(r.Context(), refs)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, project)
}
