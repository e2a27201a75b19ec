package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/facetrack/internal/media"
	"github.com/ayusman/facetrack/internal/store"
)

// RecordingStore is the persisted recording collection.
type RecordingStore interface {
	List(ctx context.Context) ([]*store.Recording, error)
	Retrieve(ctx context.Context, key string) (*media.Artifact, error)
	Delete(ctx context.Context, key string) error
}

// RunLister lists hook runs for a recording.
type RunLister interface {
	ListByRecording(ctx context.Context, key string) ([]*store.HookRun, error)
}

// RecordingsHandler handles HTTP requests for persisted recordings.
type RecordingsHandler struct {
	recordings RecordingStore
	runs       RunLister
	logger     *slog.Logger
}

// NewRecordingsHandler creates a new RecordingsHandler. runs may be nil.
func NewRecordingsHandler(recordings RecordingStore, runs RunLister, logger *slog.Logger) *RecordingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingsHandler{recordings: recordings, runs: runs, logger: logger}
}

type listRecordingsResponse struct {
	Recordings []recordingResponse `json:"recordings"`
}

type recordingResponse struct {
	Key       string `json:"key"`
	Filename  string `json:"filename"`
	MIMEType  string `json:"mime_type"`
	Size      int    `json:"size"`
	CreatedAt string `json:"created_at"`
}

type listRunsResponse struct {
	Runs []*store.HookRun `json:"runs"`
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *RecordingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/recordings, /api/recordings/{key} or /api/recordings/{key}/hooks
	path := strings.TrimPrefix(r.URL.Path, "/api/recordings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	if key, ok := strings.CutSuffix(path, "/hooks"); ok {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.hooks(w, r, key)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.download(w, r, path)
	case http.MethodDelete:
		h.delete(w, r, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list handles GET /api/recordings.
func (h *RecordingsHandler) list(w http.ResponseWriter, r *http.Request) {
	recordings, err := h.recordings.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list recordings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list recordings")
		return
	}

	resp := listRecordingsResponse{Recordings: make([]recordingResponse, 0, len(recordings))}
	for _, rec := range recordings {
		resp.Recordings = append(resp.Recordings, recordingResponse{
			Key:       rec.Key,
			Filename:  rec.Filename(),
			MIMEType:  rec.MIMEType,
			Size:      rec.Size,
			CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// download handles GET /api/recordings/{key}.
func (h *RecordingsHandler) download(w http.ResponseWriter, r *http.Request, key string) {
	artifact, err := h.recordings.Retrieve(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load recording", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load recording")
		return
	}

	w.Header().Set("Content-Type", artifact.MIMEType)
	w.Header().Set("Content-Disposition", "attachment; filename="+artifact.Filename())
	w.Header().Set("Content-Length", strconv.Itoa(artifact.Size()))
	w.WriteHeader(http.StatusOK)
	w.Write(artifact.Data)
}

// delete handles DELETE /api/recordings/{key}.
func (h *RecordingsHandler) delete(w http.ResponseWriter, r *http.Request, key string) {
	err := h.recordings.Delete(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete recording", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete recording")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// hooks handles GET /api/recordings/{key}/hooks.
func (h *RecordingsHandler) hooks(w http.ResponseWriter, r *http.Request, key string) {
	if h.runs == nil {
		writeJSON(w, http.StatusOK, listRunsResponse{Runs: []*store.HookRun{}})
		return
	}

	runs, err := h.runs.ListByRecording(r.Context(), key)
	if err != nil {
		h.logger.Error("failed to list hook runs", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list hook runs")
		return
	}
	if runs == nil {
		runs = []*store.HookRun{}
	}

	writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs})
}
