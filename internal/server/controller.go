package server

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/server/api"
	"github.com/ayusman/facetrack/internal/tracker"
)

// Controller is the application surface used by the HTTP handlers.
type Controller interface {
	api.RecordingController

	// Subscribe returns per-cycle detection events and a cancel function.
	Subscribe(buffer int) (<-chan tracker.Event, func())

	// PreviewFrame returns the camera frame with the overlay painted over it.
	PreviewFrame() (*gocv.Mat, error)
}
