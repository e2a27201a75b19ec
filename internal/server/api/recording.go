package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayusman/facetrack/internal/media"
	"github.com/ayusman/facetrack/internal/recorder"
	"github.com/ayusman/facetrack/internal/status"
)

// RecordingController starts and stops recordings.
type RecordingController interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (*media.Artifact, error)
	Status() status.Snapshot
}

// RecordingHandler handles /api/recording/start and /api/recording/stop.
type RecordingHandler struct {
	controller RecordingController
	logger     *slog.Logger
}

// NewRecordingHandler creates a new RecordingHandler.
func NewRecordingHandler(c RecordingController, logger *slog.Logger) *RecordingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingHandler{controller: c, logger: logger}
}

type artifactResponse struct {
	Size     int    `json:"size"`
	MIMEType string `json:"mime_type"`
	Filename string `json:"filename"`
	Warning  string `json:"warning,omitempty"`
}

type stateResponse struct {
	Status    string `json:"status"`
	Recording bool   `json:"recording"`
}

// ServeHTTP implements the http.Handler interface.
func (h *RecordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/recording")
	action = strings.Trim(action, "/")

	if action == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.state(w)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "start":
		h.start(w, r)
	case "stop":
		h.stop(w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown recording action")
	}
}

func (h *RecordingHandler) state(w http.ResponseWriter) {
	rec := h.controller.Status().Recording
	writeJSON(w, http.StatusOK, stateResponse{Status: recordingState(rec), Recording: rec})
}

// start handles POST /api/recording/start.
func (h *RecordingHandler) start(w http.ResponseWriter, r *http.Request) {
	err := h.controller.StartRecording(r.Context())
	switch {
	case errors.Is(err, recorder.ErrAlreadyRecording):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, recorder.ErrSourceNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		h.logger.Error("failed to start recording", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start recording")
	default:
		writeJSON(w, http.StatusOK, stateResponse{Status: recordingState(true), Recording: true})
	}
}

// stop handles POST /api/recording/stop.
func (h *RecordingHandler) stop(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.controller.StopRecording(r.Context())
	if artifact == nil {
		if err != nil {
			h.logger.Error("failed to stop recording", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to stop recording")
			return
		}
		writeJSON(w, http.StatusOK, stateResponse{Status: "idle"})
		return
	}

	resp := artifactResponse{
		Size:     artifact.Size(),
		MIMEType: artifact.MIMEType,
		Filename: artifact.Filename(),
	}
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func recordingState(recording bool) string {
	if recording {
		return "recording"
	}
	return "idle"
}
