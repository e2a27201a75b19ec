// Package detector provides face detection interfaces and implementations.
package detector

import (
	"context"
	"errors"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/model"
)

var (
	// ErrModelLoad is returned when the detection model cannot be loaded.
	ErrModelLoad = errors.New("model load failed")

	// ErrDetection is returned when a single detection call fails.
	ErrDetection = errors.New("detection failed")

	// ErrNotLoaded is returned by Detect before Load has succeeded.
	ErrNotLoaded = errors.New("model not loaded")
)

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Load loads the model assets. It must succeed before Detect is called.
	Load(ctx context.Context, loc model.Locations) error

	// Detect analyzes a video frame and returns the faces found in it,
	// in the frame's pixel coordinates. Returns an empty slice if no
	// faces are detected.
	Detect(ctx context.Context, frame *gocv.Mat) ([]Face, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// MaxFaces is the maximum number of faces returned per frame (0 = unlimited).
	MaxFaces int

	// MinConfidence is the minimum detection score (0.0-1.0) used by the landmark service.
	MinConfidence float64

	// ScaleFactor is the cascade image pyramid scale step.
	ScaleFactor float64

	// MinNeighbors is the number of overlapping cascade hits required for a face.
	MinNeighbors int

	// MinFaceSize is the smallest face side, in pixels, that is reported.
	MinFaceSize int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxFaces:      10,
		MinConfidence: 0.5,
		ScaleFactor:   1.1,
		MinNeighbors:  5,
		MinFaceSize:   40,
	}
}
