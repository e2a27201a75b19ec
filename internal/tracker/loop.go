// Package tracker runs the fixed-period detection loop: it polls the frame
// source, detects faces, measures the cycle rate and repaints the overlay.
package tracker

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/detector"
)

// Loop defaults.
const (
	// DefaultInterval is the polling period.
	DefaultInterval = 100 * time.Millisecond
	// DefaultFailureThreshold is the run of consecutive failures that marks the loop degraded.
	DefaultFailureThreshold = 3
	// DefaultMaxRate is reported when two cycles complete within the same millisecond.
	DefaultMaxRate = 1000
)

// FrameSource is the read-only view of the camera used by the loop.
type FrameSource interface {
	Ready() bool
	Size() detector.Size
	ReadFrame() (*gocv.Mat, error)
}

// ReadinessReader reports whether the detection model has loaded.
type ReadinessReader interface {
	Loaded() bool
}

// Painter repaints the display surface for a cycle.
type Painter interface {
	Render(cycle uint64, result detector.Result) (detector.Result, bool)
}

// Config holds the loop dependencies and tuning.
type Config struct {
	Source           FrameSource
	Detector         detector.Detector
	Readiness        ReadinessReader
	Renderer         Painter
	Interval         time.Duration
	FailureThreshold int
	MaxRate          int
	Clock            func() time.Time
	Logger           *slog.Logger
}

// State is the loop state published after each successful cycle.
type State struct {
	Cycle        uint64    `json:"cycle"`
	LastPoll     time.Time `json:"last_poll"`
	Rate         int       `json:"fps"`
	FaceDetected bool      `json:"face_detected"`
	Faces        int       `json:"faces"`
	Failures     int       `json:"failures"`
	Degraded     bool      `json:"degraded"`
}

// Event is delivered to subscribers after each successful cycle.
// Result is in the frame's coordinate space, Scaled in the display's.
type Event struct {
	State  State
	Result detector.Result
	Scaled detector.Result
}

// Loop is the detection loop. State is written only by the loop goroutine.
type Loop struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	gen      uint64
	running  bool
	cancel   context.CancelFunc
	stopCh   chan struct{}
	lastPoll time.Time

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a stopped loop.
func New(config Config) *Loop {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.MaxRate <= 0 {
		config.MaxRate = DefaultMaxRate
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		config: config,
		logger: logger.With("component", "tracker"),
		subs:   make(map[int]chan Event),
	}
}

// Start begins polling. Starting a running loop is a no-op.
func (l *Loop) Start() {
	ctx, gen, stopCh, ok := l.begin()
	if !ok {
		return
	}
	go l.run(ctx, gen, stopCh)
	l.logger.Info("detection loop started", "interval", l.config.Interval)
}

// begin moves the loop to the running state and returns the cycle context.
func (l *Loop) begin() (context.Context, uint64, chan struct{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil, 0, nil, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.gen++
	l.running = true
	l.cancel = cancel
	l.stopCh = make(chan struct{})
	l.lastPoll = l.config.Clock()

	return ctx, l.gen, l.stopCh, true
}

// Stop halts polling. It returns without waiting for an in-flight detection;
// the result of such a detection is discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}

	l.running = false
	l.gen++
	l.cancel()
	close(l.stopCh)

	l.logger.Info("detection loop stopped", "cycles", l.state.Cycle)
}

// Running reports whether the loop is polling.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// State returns a copy of the latest loop state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Subscribe returns a channel receiving an Event per successful cycle and a
// function that cancels the subscription. Events are dropped when the
// channel buffer is full.
func (l *Loop) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	l.subMu.Lock()
	defer l.subMu.Unlock()

	id := l.nextSub
	l.nextSub++
	ch := make(chan Event, buffer)
	l.subs[id] = ch

	return ch, func() {
		l.subMu.Lock()
		defer l.subMu.Unlock()
		if c, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(c)
		}
	}
}

// run is the polling goroutine. Ticks that fire while a cycle is still
// running are dropped by the ticker, so cycles never overlap.
func (l *Loop) run(ctx context.Context, gen uint64, stopCh chan struct{}) {
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			l.cycle(ctx, gen)
		}
	}
}

// outcome describes what a single cycle did.
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeFailed
	outcomeDiscarded
	outcomeCompleted
)

// cycle runs one poll: gate, read, detect, measure, paint, publish.
func (l *Loop) cycle(ctx context.Context, gen uint64) outcome {
	if !l.gateOpen() {
		return outcomeSkipped
	}

	if !l.current(gen) {
		return outcomeDiscarded
	}

	frame, err := l.config.Source.ReadFrame()
	if err != nil {
		l.fail(gen, "read frame", err)
		return outcomeFailed
	}
	space := l.config.Source.Size()

	if !l.current(gen) {
		closeFrame(frame)
		return outcomeDiscarded
	}

	faces, err := l.config.Detector.Detect(ctx, frame)
	closeFrame(frame)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeDiscarded
		}
		l.fail(gen, "detect faces", err)
		return outcomeFailed
	}

	now := l.config.Clock()
	result := detector.Result{Space: space, Faces: faces}

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return outcomeDiscarded
	}

	cycle := l.state.Cycle + 1
	rate := l.rate(now)

	var scaled detector.Result
	if l.config.Renderer != nil {
		scaled, _ = l.config.Renderer.Render(cycle, result)
	}

	if l.state.Degraded {
		l.logger.Info("detection recovered", "failures", l.state.Failures)
	}

	l.state = State{
		Cycle:        cycle,
		LastPoll:     now,
		Rate:         rate,
		FaceDetected: len(faces) > 0,
		Faces:        len(faces),
	}
	l.lastPoll = now
	ev := Event{State: l.state, Result: result, Scaled: scaled}
	l.mu.Unlock()

	l.publish(ev)
	return outcomeCompleted
}

// gateOpen reports whether the model is loaded and the source is ready.
func (l *Loop) gateOpen() bool {
	if l.config.Readiness == nil || !l.config.Readiness.Loaded() {
		return false
	}
	return l.config.Source != nil && l.config.Source.Ready()
}

func (l *Loop) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return gen == l.gen
}

// rate converts the time since the previous cycle into cycles per second.
// Must be called with l.mu held.
func (l *Loop) rate(now time.Time) int {
	return computeRate(now.UnixMilli()-l.lastPoll.UnixMilli(), l.config.MaxRate)
}

// computeRate returns round(1000/deltaMs), or maxRate when deltaMs <= 0.
func computeRate(deltaMs int64, maxRate int) int {
	if deltaMs <= 0 {
		return maxRate
	}
	r := int(math.Round(1000 / float64(deltaMs)))
	if r > maxRate {
		return maxRate
	}
	return r
}

// fail records a failed cycle.
func (l *Loop) fail(gen uint64, op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		return
	}

	l.state.Failures++
	l.logger.Warn("detection cycle failed", "op", op, "error", err, "consecutive", l.state.Failures)

	if !l.state.Degraded && l.state.Failures >= l.config.FailureThreshold {
		l.state.Degraded = true
		l.logger.Error("detection degraded", "consecutive", l.state.Failures)
	}
}

func (l *Loop) publish(ev Event) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
			l.logger.Debug("dropping detection event for slow subscriber", "cycle", ev.State.Cycle)
		}
	}
}

func closeFrame(frame *gocv.Mat) {
	if frame != nil {
		frame.Close()
	}
}
