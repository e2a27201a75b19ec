package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/media"
)

// ErrEndOfFrames is returned by Advance when a non-looping playback is done.
var ErrEndOfFrames = errors.New("no more frames")

// MockCamera plays back pre-recorded frames for testing.
// Like the real camera it publishes one frame at a time to a shared slot:
// every ReadFrame returns the current frame until Advance moves playback on.
// With no frames it publishes a blank Mat of its configured size.
type MockCamera struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	size    detector.Size
	openErr error
	slot    *media.FrameSlot
	stream  *media.Stream
	reads   int
	mu      sync.Mutex
	running bool
}

// NewMockCamera creates a mock camera reporting a 640x480 frame size.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		size:   detector.Size{Width: DefaultWidth, Height: DefaultHeight},
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.running = true
	c.slot = media.NewFrameSlot()
	c.stream = media.NewStream(c.slot)
	c.index = 0
	c.publish()
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if c.slot != nil {
		c.slot.Close()
	}
	c.slot = nil
	c.stream = nil
	return nil
}

// ReadFrame returns a copy of the current frame.
func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil, ErrCameraNotOpen
	}
	c.reads++
	slot := c.slot
	c.mu.Unlock()

	return slot.ReadFrame()
}

// Advance publishes the next frame. Past the last frame it wraps when
// looping and returns ErrEndOfFrames otherwise.
func (c *MockCamera) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrCameraNotOpen
	}
	if len(c.frames) == 0 {
		c.publish()
		return nil
	}

	c.index++
	if c.index >= len(c.frames) {
		if !c.loop {
			c.index = len(c.frames)
			return ErrEndOfFrames
		}
		c.index = 0
	}
	c.publish()
	return nil
}

// publish stores the current frame in the slot. Must be called with c.mu held.
func (c *MockCamera) publish() {
	if c.slot == nil {
		return
	}
	if len(c.frames) == 0 {
		c.slot.Store(gocv.NewMatWithSize(c.size.Height, c.size.Width, gocv.MatTypeCV8UC3))
		return
	}
	// Clone the frame so the original isn't modified
	c.slot.Store(c.frames[c.index].Clone())
}

func (c *MockCamera) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && !c.size.IsZero()
}

func (c *MockCamera) Size() detector.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *MockCamera) Stream() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

func (c *MockCamera) SetFPS(fps int) {}
func (c *MockCamera) FPS() int       { return 15 }
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetSize changes the reported frame size. A zero size makes the camera
// not ready, as if the dimensions were still being negotiated.
func (c *MockCamera) SetSize(size detector.Size) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = size
}

// SetOpenError makes Open fail with err.
func (c *MockCamera) SetOpenError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// Reads returns the number of ReadFrame calls while open.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// SetFrames replaces the frame sequence and publishes its first frame.
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
	c.publish()
}

// Reset restarts playback from the first frame.
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	c.publish()
}
