package overlay

import (
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/media"
)

// Marker styling.
var (
	BoxColor      = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	LandmarkColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

const (
	boxThickness   = 2
	landmarkRadius = 2
)

// Canvas is a Surface backed by OpenCV matrices. Painting happens on a
// back buffer owned by the renderer; Present publishes it for Snapshot.
type Canvas struct {
	mu     sync.Mutex
	size   detector.Size
	back   gocv.Mat
	front  gocv.Mat
	stream *media.Stream
}

// NewCanvas creates a black canvas of the given size.
func NewCanvas(size detector.Size) *Canvas {
	c := &Canvas{size: size}
	c.back = gocv.NewMatWithSize(size.Height, size.Width, gocv.MatTypeCV8UC3)
	c.front = gocv.NewMatWithSize(size.Height, size.Width, gocv.MatTypeCV8UC3)
	c.back.SetTo(gocv.NewScalar(0, 0, 0, 0))
	c.front.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return c
}

// Size returns the canvas resolution.
func (c *Canvas) Size() detector.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Resize changes the canvas resolution, discarding its contents.
func (c *Canvas) Resize(size detector.Size) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if size == c.size {
		return
	}

	c.back.Close()
	c.front.Close()
	c.size = size
	c.back = gocv.NewMatWithSize(size.Height, size.Width, gocv.MatTypeCV8UC3)
	c.front = gocv.NewMatWithSize(size.Height, size.Width, gocv.MatTypeCV8UC3)
	c.back.SetTo(gocv.NewScalar(0, 0, 0, 0))
	c.front.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

// Clear blanks the back buffer.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.back.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

// DrawBox outlines a face region on the back buffer.
func (c *Canvas) DrawBox(r detector.Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gocv.Rectangle(&c.back, r.Rectangle(), BoxColor, boxThickness)
}

// DrawLandmark marks a landmark point on the back buffer.
func (c *Canvas) DrawLandmark(p detector.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gocv.Circle(&c.back, p.ImagePoint(), landmarkRadius, LandmarkColor, -1)
}

// Present copies the back buffer to the visible buffer.
func (c *Canvas) Present() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.back.CopyTo(&c.front)
}

// Snapshot returns a copy of the visible buffer.
// The caller is responsible for closing the returned Mat.
func (c *Canvas) Snapshot() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.front.Clone()
	return &m, nil
}

// CaptureStream exposes the visible buffer as a single-video-track stream.
func (c *Canvas) CaptureStream() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		c.stream = media.NewStream(media.NewFuncTrack(media.KindVideo, c.Snapshot))
	}
	return c.stream
}

// Close releases the canvas buffers.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.back.Close()
	c.front.Close()
	return nil
}
