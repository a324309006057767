package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"asseto/internal/domain"
)

type imageView struct {
	ID          string             `json:"id"`
	SectionID   string             `json:"section_id"`
	Prompt      string             `json:"prompt"`
	Status      domain.ImageStatus `json:"status"`
	Error       string             `json:"error,omitempty"`
	MIMEType    string             `json:"mime_type,omitempty"`
	Bytes       int                `json:"bytes,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	DownloadURL string             `json:"download_url,omitempty"`
}

type regenerateResponse struct {
	Image    imageView `json:"image"`
	Replaced bool      `json:"replaced"`
	Reason   string    `json:"reason,omitempty"`
}

func newImageView(img domain.GeneratedImage) imageView {
	v := imageView{
		ID:        img.ID,
		SectionID: img.SectionID,
		Prompt:    img.Prompt,
		Status:    img.Status,
		Error:     img.Error,
		CreatedAt: img.CreatedAt,
	}
	if img.Exportable() {
		v.MIMEType = img.Artifact.MIMEType
		v.Bytes = len(img.Artifact.Data)
		v.DownloadURL = fmt.Sprintf("/v1/images/%s/download", img.ID)
	}
	return v
}

func (a *App) ListImages(w http.ResponseWriter, r *http.Request) {
	images := a.Session.Images()
	items := make([]imageView, 0, len(images))
	for _, img := range images {
		items = append(items, newImageView(img))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "status": a.Session.Status()})
}

// RegenerateImage blocks until the generator answered. A failed attempt is
// reported with replaced=false and the untouched image.
func (a *App) RegenerateImage(w http.ResponseWriter, r *http.Request) {
	out, err := a.Session.Regenerate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, regenerateResponse{Image: newImageView(out.Image), Replaced: out.Replaced, Reason: out.Reason})
}

func (a *App) DownloadImage(w http.ResponseWriter, r *http.Request) {
	format, err := domain.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name, data, err := a.Session.Download(chi.URLParam(r, "id"), format)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.MIMEType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
