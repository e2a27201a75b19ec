package detector

import (
	"context"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/model"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu      sync.Mutex
	faces   []Face
	err     error
	loadErr error
	loaded  bool
	calls   int
	gate    chan struct{}
	entered chan struct{}
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []Face) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetLoadError sets the error that will be returned by Load.
func (m *MockDetector) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// Hold makes the next Detect calls block until Release is called.
// The returned channel receives a value each time a call starts waiting.
func (m *MockDetector) Hold() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.entered = make(chan struct{}, 16)
	return m.entered
}

// Release unblocks Detect calls waiting after Hold.
func (m *MockDetector) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Calls returns the number of Detect invocations.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Loaded reports whether Load succeeded.
func (m *MockDetector) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Load returns the pre-configured load error.
func (m *MockDetector) Load(ctx context.Context, loc model.Locations) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loaded = true
	return nil
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]Face, error) {
	m.mu.Lock()
	m.calls++
	gate, entered := m.gate, m.entered
	m.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.faces, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// FrontalFace returns a preset face centered in a 640x480 frame with
// both eyes as landmarks.
func FrontalFace() Face {
	return Face{
		Box: Rect{X: 240, Y: 160, Width: 160, Height: 160},
		Landmarks: []Point{
			{X: 285, Y: 210},
			{X: 355, Y: 210},
		},
		Score: 0.97,
	}
}

// ProfileFace returns a preset face near the left edge of a 640x480
// frame with a single visible eye.
func ProfileFace() Face {
	return Face{
		Box: Rect{X: 20, Y: 100, Width: 120, Height: 140},
		Landmarks: []Point{
			{X: 60, Y: 150},
		},
		Score: 0.81,
	}
}
