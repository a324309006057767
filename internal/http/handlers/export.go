package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"asseto/internal/domain"
	"asseto/internal/export"
)

func (a *App) ExportAll(w http.ResponseWriter, r *http.Request) {
	format, err := domain.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Session.ExportAll(r.Context(), format)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.archive(w, res)
}

func (a *App) ExportSection(w http.ResponseWriter, r *http.Request) {
	format, err := domain.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Session.ExportSection(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.archive(w, res)
}

func (a *App) archive(w http.ResponseWriter, res export.Result) {
	if len(res.Skipped) > 0 {
		w.Header().Set("X-Export-Skipped", strings.Join(res.SkippedPaths(), ","))
		a.Logger.Warn().Str("archive", res.Name).Int("skipped", len(res.Skipped)).Msg("http: export skipped images")
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
