// Package recorder implements the recording session: it encodes the camera
// stream together with the overlay stream, accumulates the encoded fragments
// and finalises them into a single downloadable artifact.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/facetrack/internal/media"
)

const (
	// DefaultPersistKey is the key the last recording is stored under.
	DefaultPersistKey = "recordedVideoBase64"
	// DefaultFinishTimeout bounds finalize, delivery and persistence on Stop.
	DefaultFinishTimeout = 30 * time.Second
)

var (
	// ErrSourceNotReady is returned by Start when the camera or the overlay
	// stream has no video track.
	ErrSourceNotReady = errors.New("recording source not ready")
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNoVideoTrack is returned by encoders given a stream without video.
	ErrNoVideoTrack = errors.New("stream has no video track")
)

// StreamSource yields the current stream of a producer, or nil when the
// producer has none.
type StreamSource interface {
	Stream() *media.Stream
}

// StreamFunc adapts a function into a StreamSource.
type StreamFunc func() *media.Stream

// Stream calls f.
func (f StreamFunc) Stream() *media.Stream { return f() }

// FragmentHandler receives encoded fragments in production order.
type FragmentHandler func(fragment []byte)

// Encoding is a running encode.
type Encoding interface {
	// Finalize stops the encode and returns once every fragment has been
	// delivered to the handler.
	Finalize(ctx context.Context) error
}

// Encoder turns a stream into encoded fragments.
type Encoder interface {
	MIMEType() string
	Extension() string

	// Encode starts encoding stream. ctx bounds start-up only; the encode
	// runs until Finalize is called.
	Encode(ctx context.Context, stream *media.Stream, onFragment FragmentHandler) (Encoding, error)
}

// Sink receives finished artifacts, e.g. to offer them as a download.
type Sink interface {
	Deliver(ctx context.Context, artifact *media.Artifact) error
}

// Persister stores the most recent artifact under a key.
type Persister interface {
	Persist(ctx context.Context, key string, artifact *media.Artifact) error
	Retrieve(ctx context.Context, key string) (*media.Artifact, error)
}

// Config holds the recorder dependencies.
type Config struct {
	Video      StreamSource
	Overlay    StreamSource
	Encoder    Encoder
	Sinks      []Sink
	Persister  Persister
	PersistKey string

	// FinishTimeout bounds the work done by Stop once the session is
	// detached. It does not inherit the caller's cancellation.
	FinishTimeout time.Duration

	Logger *slog.Logger
}

// session owns the fragments of one recording.
type session struct {
	mu       sync.Mutex
	chunks   [][]byte
	encoding Encoding
	started  time.Time
}

func (s *session) append(fragment []byte) {
	if len(fragment) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, fragment)
}

func (s *session) snapshot() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Recorder is the Idle/Recording state machine.
type Recorder struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	active *session
	last   *session
}

// New creates an idle recorder.
func New(config Config) *Recorder {
	if config.PersistKey == "" {
		config.PersistKey = DefaultPersistKey
	}
	if config.FinishTimeout <= 0 {
		config.FinishTimeout = DefaultFinishTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		config: config,
		logger: logger.With("component", "recorder"),
	}
}

// Start begins a recording of the camera stream combined with the overlay
// stream.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return ErrAlreadyRecording
	}

	video := videoStream(r.config.Video)
	if video == nil {
		return fmt.Errorf("%w: no camera stream", ErrSourceNotReady)
	}
	overlay := videoStream(r.config.Overlay)
	if overlay == nil {
		return fmt.Errorf("%w: no overlay stream", ErrSourceNotReady)
	}
	composite := media.Combine(video, overlay)

	s := &session{started: time.Now()}
	encoding, err := r.config.Encoder.Encode(ctx, composite, s.append)
	if err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}
	s.encoding = encoding
	r.active = s

	r.logger.Info("recording started",
		"stream", composite.ID(),
		"tracks", len(composite.Tracks()),
		"mime_type", r.config.Encoder.MIMEType())
	return nil
}

// videoStream returns the current stream of src when it carries video.
func videoStream(src StreamSource) *media.Stream {
	if src == nil {
		return nil
	}
	s := src.Stream()
	if s == nil || len(s.VideoTracks()) == 0 {
		return nil
	}
	return s
}

// Stop ends the active recording, finalises the artifact, offers it to every
// sink and persists it. Stopping an idle recorder returns a nil artifact.
// Sink and persist failures are returned together with the artifact.
//
// Once the session is detached its work runs to completion even if ctx is
// cancelled, bounded by FinishTimeout; ctx only contributes its values.
func (r *Recorder) Stop(ctx context.Context) (*media.Artifact, error) {
	r.mu.Lock()
	s := r.active
	r.active = nil
	if s != nil {
		r.last = s
	}
	r.mu.Unlock()

	if s == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.FinishTimeout)
	defer cancel()

	if err := s.encoding.Finalize(ctx); err != nil {
		r.logger.Warn("encoder finalize failed", "error", err)
	}

	chunks := s.snapshot()
	artifact := media.Concat(chunks, r.config.Encoder.MIMEType(), r.config.Encoder.Extension())

	r.logger.Info("recording stopped",
		"duration", time.Since(s.started).Round(time.Millisecond),
		"fragments", len(chunks),
		"size", artifact.Size())

	var errs []error
	for _, sink := range r.config.Sinks {
		if err := sink.Deliver(ctx, artifact); err != nil {
			r.logger.Error("failed to deliver recording", "error", err)
			errs = append(errs, fmt.Errorf("deliver: %w", err))
		}
	}

	if r.config.Persister != nil {
		if err := r.config.Persister.Persist(ctx, r.config.PersistKey, artifact); err != nil {
			r.logger.Error("failed to persist recording", "key", r.config.PersistKey, "error", err)
			errs = append(errs, fmt.Errorf("persist %s: %w", r.config.PersistKey, err))
		}
	}

	return artifact, errors.Join(errs...)
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Chunks returns a copy of the fragments of the active session, or of the
// last finished one when idle.
func (r *Recorder) Chunks() [][]byte {
	r.mu.Lock()
	s := r.active
	if s == nil {
		s = r.last
	}
	r.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.snapshot()
}

// PersistKey returns the key recordings are persisted under.
func (r *Recorder) PersistKey() string {
	return r.config.PersistKey
}

// MIMEType returns the container type of produced artifacts.
func (r *Recorder) MIMEType() string {
	return r.config.Encoder.MIMEType()
}
