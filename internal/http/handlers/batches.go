package handlers

import (
	"net/http"
)

type batchResponse struct {
	BatchID    string `json:"batch_id"`
	Generation uint64 `json:"generation"`
	Items      int    `json:"items"`
}

// StartBatch launches a batch and returns before any job settled.
func (a *App) StartBatch(w http.ResponseWriter, r *http.Request) {
	b, err := a.Session.StartBatch(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, batchResponse{BatchID: b.ID, Generation: b.Generation, Items: len(b.Items)})
}

func (a *App) CurrentBatch(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Session.Status())
}
