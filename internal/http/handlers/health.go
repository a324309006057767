package handlers

import (
	"net/http"
)

type healthResponse struct {
	Status     string `json:"status"`
	Batch      string `json:"batch"`
	Generation uint64 `json:"generation"`
}

// Health reports liveness together with the state of the latest batch.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	st := a.Session.Status()
	a.json(w, http.StatusOK, healthResponse{Status: "ok", Batch: string(st.Status), Generation: st.Generation})
}
