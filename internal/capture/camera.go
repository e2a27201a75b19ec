// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/media"
)

// Default camera settings
const (
	DefaultFPS    = 10
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrPermissionDenied is returned when the OS refuses access to the camera.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDeviceUnavailable is returned when the camera device cannot be opened.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
)

// Camera defines the interface for camera capture implementations.
// A camera is the frame source of the detection loop: it is Ready once it
// is open and its frame dimensions are known.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	Ready() bool
	Size() detector.Size
	Stream() *media.Stream
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// readRetryDelay is the pause after a failed device read.
const readRetryDelay = 20 * time.Millisecond

// cameraImpl manages video capture from a camera device using GoCV.
// A single reader goroutine owns the VideoCapture and publishes every frame
// to a FrameSlot; ReadFrame and the stream hand out clones of it.
type cameraImpl struct {
	deviceID int
	width    int
	height   int
	capture  *gocv.VideoCapture
	slot     *media.FrameSlot
	stream   *media.Stream
	size     detector.Size
	mu       sync.Mutex
	running  bool
	fps      int
	fpsDirty bool
	stopCh   chan struct{}
	done     chan struct{}
}

// NewCamera creates a new Camera with the given device ID and requested
// resolution. Zero dimensions use the defaults.
func NewCamera(deviceID, width, height int) Camera {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	return &cameraImpl{
		deviceID: deviceID,
		width:    width,
		height:   height,
		fps:      DefaultFPS,
	}
}

// Open opens the camera for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return classifyOpenError(err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: device %d", ErrDeviceUnavailable, c.deviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true
	c.size = detector.Size{}
	c.negotiate()
	c.fpsDirty = false
	c.slot = media.NewFrameSlot()
	c.stream = media.NewStream(c.slot)
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})

	// Publish a first frame before returning so readers never start empty.
	if size, ok := grab(capture, c.slot); ok {
		c.size = size
	}

	go c.readLoop(capture, c.slot, c.stopCh, c.done)

	return nil
}

// readLoop is the only reader of the device after Open.
func (c *cameraImpl) readLoop(capture *gocv.VideoCapture, slot *media.FrameSlot, stopCh, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		c.applyFPS(capture)
		size, ok := grab(capture, slot)
		if ok {
			c.mu.Lock()
			c.size = size
			c.mu.Unlock()
			continue
		}
		select {
		case <-stopCh:
			return
		case <-time.After(readRetryDelay):
		}
	}
}

// grab reads one frame from the device into slot and returns its size.
// Real frames are authoritative for the dimensions.
func grab(capture *gocv.VideoCapture, slot *media.FrameSlot) (detector.Size, bool) {
	mat := gocv.NewMat()
	if ok := capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return detector.Size{}, false
	}

	size := detector.Size{Width: mat.Cols(), Height: mat.Rows()}
	slot.Store(mat)
	return size, true
}

// applyFPS forwards a pending SetFPS to the device from the reader goroutine.
func (c *cameraImpl) applyFPS(capture *gocv.VideoCapture) {
	c.mu.Lock()
	if !c.fpsDirty {
		c.mu.Unlock()
		return
	}
	fps := c.fps
	c.fpsDirty = false
	c.mu.Unlock()

	capture.Set(gocv.VideoCaptureFPS, float64(fps))
}

// classifyOpenError maps an OpenCV open failure onto the acquisition errors.
func classifyOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not authorized") || strings.Contains(msg, "denied") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

// negotiate reads the frame dimensions reported by the driver.
// Must be called with c.mu held, before the reader goroutine starts.
func (c *cameraImpl) negotiate() {
	if c.capture == nil || !c.size.IsZero() {
		return
	}
	c.size = detector.Size{
		Width:  int(c.capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(c.capture.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// Close stops the reader goroutine and releases the device.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	if !c.running || c.capture == nil {
		c.running = false
		c.mu.Unlock()
		return nil
	}

	capture, slot, stopCh, done := c.capture, c.slot, c.stopCh, c.done
	c.capture = nil
	c.slot = nil
	c.stream = nil
	c.size = detector.Size{}
	c.running = false
	c.mu.Unlock()

	// The reader takes c.mu, so wait for it without holding the lock.
	close(stopCh)
	<-done

	slot.Close()
	return capture.Close()
}

// ReadFrame returns a copy of the latest frame. Concurrent callers share
// the device's frame sequence instead of consuming frames from it.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	slot := c.slot
	running := c.running
	c.mu.Unlock()

	if !running || slot == nil {
		return nil, ErrCameraNotOpen
	}
	return slot.ReadFrame()
}

// Ready reports whether the camera is open and its dimensions are known.
func (c *cameraImpl) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running && !c.size.IsZero()
}

// Size returns the negotiated frame size, or a zero size before negotiation.
func (c *cameraImpl) Size() detector.Size {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

// Stream returns the live video stream, or nil when the camera is not open.
func (c *cameraImpl) Stream() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stream
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	c.fpsDirty = c.running
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
