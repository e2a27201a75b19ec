// Package status projects the loop, model and recording state into the
// status card shown to the user.
package status

import (
	"fmt"

	"github.com/ayusman/facetrack/internal/tracker"
)

// LoopReader exposes the latest loop state.
type LoopReader interface {
	State() tracker.State
}

// ReadinessReader reports whether the detection model has loaded.
type ReadinessReader interface {
	Loaded() bool
}

// RecordingReader reports whether a recording is active.
type RecordingReader interface {
	Recording() bool
}

// Snapshot is a point-in-time copy of the user-visible status.
type Snapshot struct {
	Recording    bool   `json:"recording"`
	ModelsLoaded bool   `json:"models_loaded"`
	FaceDetected bool   `json:"face_detected"`
	FPS          int    `json:"fps"`
	Faces        int    `json:"faces"`
	Degraded     bool   `json:"degraded"`
	Cycle        uint64 `json:"cycle"`
}

// Row is one labelled line of the status card.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// String renders the row as "Label: Value".
func (r Row) String() string {
	return r.Label + ": " + r.Value
}

// Rows returns the status card lines.
func (s Snapshot) Rows() []Row {
	return []Row{
		{Label: "Recording", Value: choose(s.Recording, "Active", "Stopped")},
		{Label: "Models Loaded", Value: choose(s.ModelsLoaded, "Loaded", "Loading...")},
		{Label: "Face Detected", Value: choose(s.FaceDetected, "Yes", "No")},
		{Label: "FPS", Value: fmt.Sprintf("%d S", s.FPS)},
	}
}

func choose(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

// Reporter builds snapshots from its readers. Any reader may be nil.
type Reporter struct {
	loop   LoopReader
	models ReadinessReader
	rec    RecordingReader
}

// New creates a Reporter.
func New(loop LoopReader, models ReadinessReader, rec RecordingReader) *Reporter {
	return &Reporter{loop: loop, models: models, rec: rec}
}

// Snapshot returns the current status.
func (r *Reporter) Snapshot() Snapshot {
	var s Snapshot
	if r == nil {
		return s
	}

	if r.loop != nil {
		st := r.loop.State()
		s.FaceDetected = st.FaceDetected
		s.FPS = st.Rate
		s.Faces = st.Faces
		s.Degraded = st.Degraded
		s.Cycle = st.Cycle
	}
	if r.models != nil {
		s.ModelsLoaded = r.models.Loaded()
	}
	if r.rec != nil {
		s.Recording = r.rec.Recording()
	}
	return s
}
