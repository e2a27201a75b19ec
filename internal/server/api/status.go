package api

import (
	"net/http"

	"github.com/ayusman/facetrack/internal/status"
)

// StatusSource yields the current status snapshot.
type StatusSource interface {
	Status() status.Snapshot
}

// StatusHandler serves GET /api/status.
type StatusHandler struct {
	source StatusSource
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(source StatusSource) *StatusHandler {
	return &StatusHandler{source: source}
}

type statusResponse struct {
	status.Snapshot
	Rows []status.Row `json:"rows"`
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.source.Status()
	writeJSON(w, http.StatusOK, statusResponse{Snapshot: snap, Rows: snap.Rows()})
}
