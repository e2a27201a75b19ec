package media

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// ErrNoFrame is returned by a FrameSlot that has not received a frame yet.
var ErrNoFrame = errors.New("no frame available")

// FrameSlot is a video Track holding the latest frame of a single producer.
// Every reader gets its own clone, so any number of consumers share one
// frame sequence without taking frames from each other.
type FrameSlot struct {
	id string

	mu     sync.RWMutex
	frame  *gocv.Mat
	seq    uint64
	closed bool
}

// NewFrameSlot creates an empty slot.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{id: uuid.NewString()}
}

// ID returns the track identifier.
func (s *FrameSlot) ID() string { return s.id }

// Kind returns KindVideo.
func (s *FrameSlot) Kind() Kind { return KindVideo }

// Store replaces the latest frame and takes ownership of frame. Frames
// stored after Close are released immediately.
func (s *FrameSlot) Store(frame gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		frame.Close()
		return
	}
	if s.frame != nil {
		s.frame.Close()
	}
	s.frame = &frame
	s.seq++
}

// ReadFrame returns a clone of the latest frame.
// The caller is responsible for closing the returned Mat.
func (s *FrameSlot) ReadFrame() (*gocv.Mat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.frame == nil {
		return nil, ErrNoFrame
	}
	clone := s.frame.Clone()
	return &clone, nil
}

// Seq returns the number of frames stored so far.
func (s *FrameSlot) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Close releases the held frame. Later reads return ErrNoFrame.
func (s *FrameSlot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame != nil {
		s.frame.Close()
		s.frame = nil
	}
	s.closed = true
}
