// Package app wires the camera, detection loop, overlay, recorder and status
// reporter together and owns the startup order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/capture"
	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/hook"
	"github.com/ayusman/facetrack/internal/media"
	"github.com/ayusman/facetrack/internal/model"
	"github.com/ayusman/facetrack/internal/overlay"
	"github.com/ayusman/facetrack/internal/recorder"
	"github.com/ayusman/facetrack/internal/status"
	"github.com/ayusman/facetrack/internal/tracker"
)

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("application stopped")

// Config holds the application dependencies.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Models   model.Locations

	// DisplaySize is the overlay resolution; zero matches the camera.
	DisplaySize      detector.Size
	Interval         time.Duration
	FailureThreshold int

	Encoder    recorder.Encoder
	Downloads  *recorder.DirDownloader
	Persister  recorder.Persister
	PersistKey string

	// Hooks is notified of saved recordings; may be nil.
	Hooks *hook.Dispatcher

	Logger *slog.Logger
}

// App is the face tracking application.
type App struct {
	config    Config
	logger    *slog.Logger
	readiness *model.Readiness
	canvas    *overlay.Canvas
	renderer  *overlay.Renderer
	loop      *tracker.Loop
	recorder  *recorder.Recorder
	reporter  *status.Reporter

	mu      sync.Mutex
	started bool
	closed  bool

	// hooks counts running hook dispatches. Add happens under mu and only
	// while hooksDone is false, so it never races the final Wait.
	hooks     sync.WaitGroup
	hooksDone bool
}

// New creates an App. Nothing is acquired until Start.
func New(config Config) *App {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Encoder == nil {
		config.Encoder = recorder.NewMJPEGEncoder(recorder.DefaultFPS)
	}

	a := &App{
		config:    config,
		logger:    logger,
		readiness: model.NewReadiness(),
		canvas:    overlay.NewCanvas(config.DisplaySize),
	}
	a.renderer = overlay.NewRenderer(a.canvas)

	a.loop = tracker.New(tracker.Config{
		Source:           config.Camera,
		Detector:         config.Detector,
		Readiness:        a.readiness,
		Renderer:         a.renderer,
		Interval:         config.Interval,
		FailureThreshold: config.FailureThreshold,
		Logger:           logger,
	})

	var sinks []recorder.Sink
	if config.Downloads != nil {
		sinks = append(sinks, *config.Downloads)
	}
	a.recorder = recorder.New(recorder.Config{
		Video:      config.Camera,
		Overlay:    recorder.StreamFunc(a.canvas.CaptureStream),
		Encoder:    config.Encoder,
		Sinks:      sinks,
		Persister:  config.Persister,
		PersistKey: config.PersistKey,
		Logger:     logger,
	})

	a.reporter = status.New(a.loop, a.readiness, a.recorder)
	return a
}

// Start loads the detection model, acquires the camera and starts the
// detection loop, in that order. A model failure leaves the camera
// untouched; a camera failure leaves the model loaded and the loop stopped.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrStopped
	}
	if a.started {
		return nil
	}

	a.logger.Info("loading detection model", "dir", a.config.Models.Dir)
	if err := a.config.Detector.Load(ctx, a.config.Models); err != nil {
		if !errors.Is(err, detector.ErrModelLoad) {
			err = fmt.Errorf("%w: %w", detector.ErrModelLoad, err)
		}
		a.logger.Error("model load failed", "error", err)
		return err
	}
	a.readiness.MarkLoaded()
	a.logger.Info("detection model loaded")

	if err := a.config.Camera.Open(); err != nil {
		a.logger.Error("camera acquisition failed", "error", err)
		return fmt.Errorf("acquire camera: %w", err)
	}

	if interval := a.loopInterval(); interval > 0 {
		a.config.Camera.SetFPS(int(time.Second / interval))
	}
	if a.config.DisplaySize.IsZero() {
		a.canvas.Resize(a.config.Camera.Size())
	}

	a.loop.Start()
	a.started = true
	return nil
}

func (a *App) loopInterval() time.Duration {
	if a.config.Interval > 0 {
		return a.config.Interval
	}
	return tracker.DefaultInterval
}

// Stop finishes any active recording, stops the loop and releases the
// camera, the detector and the overlay. Stopping twice is a no-op.
func (a *App) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	if a.recorder.Recording() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := a.StopRecording(ctx); err != nil {
			a.logger.Error("failed to finish recording on shutdown", "error", err)
		}
		cancel()
	}

	a.loop.Stop()

	a.mu.Lock()
	a.hooksDone = true
	a.mu.Unlock()
	a.hooks.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.config.Camera.Close(); err != nil {
		a.logger.Error("error closing camera", "error", err)
	}
	if err := a.config.Detector.Close(); err != nil {
		a.logger.Error("error closing detector", "error", err)
	}
	a.canvas.Close()

	a.logger.Info("application stopped")
}

// StartRecording begins recording the camera with the overlay. It fails
// with ErrStopped once Stop has been called.
func (a *App) StartRecording(ctx context.Context) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrStopped
	}
	return a.recorder.Start(ctx)
}

// StopRecording finalises the active recording and notifies hooks. It
// returns a nil artifact when nothing was recording.
func (a *App) StopRecording(ctx context.Context) (*media.Artifact, error) {
	artifact, err := a.recorder.Stop(ctx)
	if artifact != nil {
		a.notify(artifact)
	}
	return artifact, err
}

// ToggleRecording starts a recording when idle and stops it otherwise.
// It reports whether a recording is active afterwards.
func (a *App) ToggleRecording(ctx context.Context) (bool, *media.Artifact, error) {
	if a.recorder.Recording() {
		artifact, err := a.StopRecording(ctx)
		return false, artifact, err
	}
	if err := a.StartRecording(ctx); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// notify fires the recording.saved hooks in the background. It reports
// whether the hooks were scheduled; after shutdown has drained the hooks
// nothing more is scheduled.
func (a *App) notify(artifact *media.Artifact) bool {
	if a.config.Hooks == nil {
		return false
	}

	req := hook.Request{
		Event:    hook.EventRecordingSaved,
		Key:      a.recorder.PersistKey(),
		Filename: artifact.Filename(),
		Size:     artifact.Size(),
		MIMEType: artifact.MIMEType,
	}
	if a.config.Downloads != nil {
		req.Path = a.config.Downloads.Path(artifact.Extension)
	}

	a.mu.Lock()
	if a.hooksDone {
		a.mu.Unlock()
		a.logger.Warn("skipping hooks after shutdown", "key", req.Key)
		return false
	}
	a.hooks.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.hooks.Done()
		a.config.Hooks.Fire(context.Background(), req)
	}()
	return true
}

// Status returns the current status snapshot.
func (a *App) Status() status.Snapshot {
	return a.reporter.Snapshot()
}

// Subscribe returns the per-cycle detection events. See tracker.Loop.Subscribe.
func (a *App) Subscribe(buffer int) (<-chan tracker.Event, func()) {
	return a.loop.Subscribe(buffer)
}

// PreviewFrame renders the camera frame with the overlay painted over it.
// The caller is responsible for closing the returned Mat.
func (a *App) PreviewFrame() (*gocv.Mat, error) {
	video := a.config.Camera.Stream()
	if video == nil {
		return nil, capture.ErrCameraNotOpen
	}
	return recorder.Composite(media.Combine(video, a.canvas.CaptureStream()))
}

// Recordings returns the persister recordings are saved to, or nil.
func (a *App) Recordings() recorder.Persister {
	return a.config.Persister
}

// Readiness returns the model readiness latch.
func (a *App) Readiness() *model.Readiness {
	return a.readiness
}

// Loop returns the detection loop.
func (a *App) Loop() *tracker.Loop {
	return a.loop
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.config.Camera
}

// Canvas returns the overlay surface.
func (a *App) Canvas() *overlay.Canvas {
	return a.canvas
}

// Renderer returns the overlay renderer.
func (a *App) Renderer() *overlay.Renderer {
	return a.renderer
}
