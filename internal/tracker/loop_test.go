package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/model"
)

// fakeSource is a frame source that hands out nil frames.
type fakeSource struct {
	mu    sync.Mutex
	ready bool
	size  detector.Size
	err   error
	reads int
}

func newFakeSource() *fakeSource {
	return &fakeSource{ready: true, size: detector.Size{Width: 640, Height: 480}}
}

func (s *fakeSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeSource) Size() detector.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *fakeSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return nil, s.err
}

// fakeClock returns the queued times in order, repeating the last one.
type fakeClock struct {
	mu    sync.Mutex
	times []time.Time
}

func newFakeClock(ms ...int64) *fakeClock {
	c := &fakeClock{}
	for _, m := range ms {
		c.times = append(c.times, time.UnixMilli(m))
	}
	return c
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

// fakePainter records the cycles it painted.
type fakePainter struct {
	mu     sync.Mutex
	cycles []uint64
	faces  []int
}

func (p *fakePainter) Render(cycle uint64, r detector.Result) (detector.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycles = append(p.cycles, cycle)
	p.faces = append(p.faces, len(r.Faces))
	return r.ScaleTo(detector.Size{Width: 320, Height: 240})
}

func loadedReadiness() *model.Readiness {
	r := model.NewReadiness()
	r.MarkLoaded()
	return r
}

func TestLoop_SkipsWhenNotReady(t *testing.T) {
	tests := []struct {
		name        string
		modelLoaded bool
		sourceReady bool
	}{
		{name: "model loading", modelLoaded: false, sourceReady: true},
		{name: "source not ready", modelLoaded: true, sourceReady: false},
		{name: "neither ready", modelLoaded: false, sourceReady: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readiness := model.NewReadiness()
			if tt.modelLoaded {
				readiness.MarkLoaded()
			}
			source := newFakeSource()
			source.ready = tt.sourceReady
			det := detector.NewMockDetector()
			det.SetFaces([]detector.Face{detector.FrontalFace()})

			l := New(Config{Source: source, Detector: det, Readiness: readiness})
			ctx, gen, _, _ := l.begin()
			defer l.Stop()

			for i := 0; i < 5; i++ {
				if got := l.cycle(ctx, gen); got != outcomeSkipped {
					t.Fatalf("cycle %d: outcome = %v, want skipped", i, got)
				}
			}

			if l.State() != (State{}) {
				t.Errorf("state changed on skipped cycles: %+v", l.State())
			}
			if det.Calls() != 0 {
				t.Errorf("detector called %d times, want 0", det.Calls())
			}
			if source.reads != 0 {
				t.Errorf("source read %d times, want 0", source.reads)
			}
		})
	}
}

func TestLoop_NilReadinessNeverDetects(t *testing.T) {
	det := detector.NewMockDetector()
	l := New(Config{Source: newFakeSource(), Detector: det})
	ctx, gen, _, _ := l.begin()
	defer l.Stop()

	if got := l.cycle(ctx, gen); got != outcomeSkipped {
		t.Errorf("outcome = %v, want skipped", got)
	}
	if det.Calls() != 0 {
		t.Error("detector must not run without a readiness latch")
	}
}

func TestLoop_RateSequence(t *testing.T) {
	// begin at 1000, then cycles at 1100, 1150, 1150, 1180, 1183
	clock := newFakeClock(1000, 1100, 1150, 1150, 1180, 1183)
	det := detector.NewMockDetector()

	l := New(Config{
		Source:    newFakeSource(),
		Detector:  det,
		Readiness: loadedReadiness(),
		Clock:     clock.Now,
	})
	ctx, gen, _, _ := l.begin()
	defer l.Stop()

	want := []int{
		10,             // 1000/100
		20,             // 1000/50
		DefaultMaxRate, // zero delta is clamped
		33,             // 1000/30 rounded
		333,            // 1000/3 rounded
	}

	for i, w := range want {
		if got := l.cycle(ctx, gen); got != outcomeCompleted {
			t.Fatalf("cycle %d: outcome = %v, want completed", i, got)
		}
		st := l.State()
		if st.Rate != w {
			t.Errorf("cycle %d: rate = %d, want %d", i, st.Rate, w)
		}
		if st.Cycle != uint64(i+1) {
			t.Errorf("cycle %d: cycle counter = %d", i, st.Cycle)
		}
	}
}

func TestComputeRate(t *testing.T) {
	tests := []struct {
		delta int64
		max   int
		want  int
	}{
		{delta: 100, max: 1000, want: 10},
		{delta: 16, max: 1000, want: 63},
		{delta: 1, max: 1000, want: 1000},
		{delta: 0, max: 1000, want: 1000},
		{delta: -5, max: 1000, want: 1000},
		{delta: 1, max: 60, want: 60},
		{delta: 3000, max: 1000, want: 0},
	}

	for _, tt := range tests {
		if got := computeRate(tt.delta, tt.max); got != tt.want {
			t.Errorf("computeRate(%d, %d) = %d, want %d", tt.delta, tt.max, got, tt.want)
		}
	}
}

func TestLoop_FaceDetectedAndPaint(t *testing.T) {
	tests := []struct {
		name  string
		faces []detector.Face
	}{
		{name: "no faces", faces: nil},
		{name: "one face", faces: []detector.Face{detector.FrontalFace()}},
		{name: "two faces", faces: []detector.Face{detector.FrontalFace(), detector.ProfileFace()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := detector.NewMockDetector()
			det.SetFaces(tt.faces)
			painter := &fakePainter{}

			l := New(Config{
				Source:    newFakeSource(),
				Detector:  det,
				Readiness: loadedReadiness(),
				Renderer:  painter,
			})
			events, cancel := l.Subscribe(1)
			defer cancel()

			ctx, gen, _, _ := l.begin()
			defer l.Stop()

			if got := l.cycle(ctx, gen); got != outcomeCompleted {
				t.Fatalf("outcome = %v, want completed", got)
			}

			st := l.State()
			if st.FaceDetected != (len(tt.faces) > 0) {
				t.Errorf("FaceDetected = %v with %d faces", st.FaceDetected, len(tt.faces))
			}
			if st.Faces != len(tt.faces) {
				t.Errorf("Faces = %d, want %d", st.Faces, len(tt.faces))
			}

			if len(painter.cycles) != 1 || painter.cycles[0] != st.Cycle {
				t.Errorf("painted cycles %v, state cycle %d", painter.cycles, st.Cycle)
			}
			if painter.faces[0] != len(tt.faces) {
				t.Errorf("painted %d faces, want %d", painter.faces[0], len(tt.faces))
			}

			ev := <-events
			if ev.State != st {
				t.Errorf("event state %+v differs from loop state %+v", ev.State, st)
			}
			if ev.Result.Space != (detector.Size{Width: 640, Height: 480}) {
				t.Errorf("unexpected source space %+v", ev.Result.Space)
			}
			if ev.Scaled.Space != (detector.Size{Width: 320, Height: 240}) {
				t.Errorf("unexpected scaled space %+v", ev.Scaled.Space)
			}
		})
	}
}

func TestLoop_FailuresDegradeAndRecover(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetError(detector.ErrDetection)

	l := New(Config{Source: newFakeSource(), Detector: det, Readiness: loadedReadiness()})
	ctx, gen, _, _ := l.begin()
	defer l.Stop()

	for i := 1; i <= 2; i++ {
		if got := l.cycle(ctx, gen); got != outcomeFailed {
			t.Fatalf("cycle %d: outcome = %v, want failed", i, got)
		}
		if l.State().Degraded {
			t.Fatalf("degraded after %d failures", i)
		}
	}

	l.cycle(ctx, gen)
	st := l.State()
	if !st.Degraded || st.Failures != 3 {
		t.Errorf("expected degraded after 3 failures, got %+v", st)
	}
	if st.Cycle != 0 || st.Rate != 0 {
		t.Errorf("failed cycles must not touch the published cycle: %+v", st)
	}

	det.SetError(nil)
	det.SetFaces([]detector.Face{detector.FrontalFace()})
	if got := l.cycle(ctx, gen); got != outcomeCompleted {
		t.Fatalf("outcome = %v, want completed", got)
	}

	st = l.State()
	if st.Degraded || st.Failures != 0 {
		t.Errorf("success should reset the failure run, got %+v", st)
	}
	if !st.FaceDetected {
		t.Error("expected face detected after recovery")
	}
}

func TestLoop_ReadFailureCounts(t *testing.T) {
	source := newFakeSource()
	source.err = errors.New("device unplugged")
	det := detector.NewMockDetector()

	l := New(Config{Source: source, Detector: det, Readiness: loadedReadiness(), FailureThreshold: 1})
	ctx, gen, _, _ := l.begin()
	defer l.Stop()

	if got := l.cycle(ctx, gen); got != outcomeFailed {
		t.Fatalf("outcome = %v, want failed", got)
	}
	if !l.State().Degraded {
		t.Error("expected degraded with threshold 1")
	}
	if det.Calls() != 0 {
		t.Error("detector must not run when the frame read fails")
	}
}

func TestLoop_StopDiscardsInFlight(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetFaces([]detector.Face{detector.FrontalFace()})
	entered := det.Hold()
	painter := &fakePainter{}

	l := New(Config{Source: newFakeSource(), Detector: det, Readiness: loadedReadiness(), Renderer: painter})
	ctx, gen, _, _ := l.begin()

	done := make(chan outcome)
	go func() {
		done <- l.cycle(ctx, gen)
	}()

	<-entered
	l.Stop()
	det.Release()

	if got := <-done; got != outcomeDiscarded {
		t.Errorf("outcome = %v, want discarded", got)
	}
	if l.State() != (State{}) {
		t.Errorf("late result mutated state: %+v", l.State())
	}
	if len(painter.cycles) != 0 {
		t.Error("late result must not be painted")
	}

	// A cycle from the stopped generation never reaches the detector.
	calls := det.Calls()
	if got := l.cycle(ctx, gen); got != outcomeSkipped && got != outcomeDiscarded {
		t.Errorf("outcome = %v after stop", got)
	}
	if det.Calls() != calls {
		t.Error("detector called after Stop")
	}
}

func TestLoop_StartStop(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetFaces([]detector.Face{detector.FrontalFace()})

	l := New(Config{
		Source:    newFakeSource(),
		Detector:  det,
		Readiness: loadedReadiness(),
		Interval:  5 * time.Millisecond,
	})

	l.Start()
	l.Start() // no-op

	if !l.Running() {
		t.Fatal("loop should be running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for l.State().Cycle < 3 {
		if time.Now().After(deadline) {
			t.Fatal("loop did not complete 3 cycles")
		}
		time.Sleep(5 * time.Millisecond)
	}

	l.Stop()
	l.Stop() // no-op

	if l.Running() {
		t.Error("loop should be stopped")
	}

	time.Sleep(20 * time.Millisecond)
	calls := det.Calls()
	cycle := l.State().Cycle
	time.Sleep(50 * time.Millisecond)

	if det.Calls() != calls {
		t.Errorf("detector called after stop: %d -> %d", calls, det.Calls())
	}
	if l.State().Cycle != cycle {
		t.Error("state changed after stop")
	}
}

func TestLoop_Unsubscribe(t *testing.T) {
	l := New(Config{Source: newFakeSource(), Detector: detector.NewMockDetector(), Readiness: loadedReadiness()})
	events, cancel := l.Subscribe(0)
	cancel()
	cancel() // idempotent

	if _, ok := <-events; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	ctx, gen, _, _ := l.begin()
	defer l.Stop()

	if got := l.cycle(ctx, gen); got != outcomeCompleted {
		t.Errorf("outcome = %v, want completed", got)
	}
}

func TestLoop_CancelledContextDiscards(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetError(context.Canceled)

	l := New(Config{Source: newFakeSource(), Detector: det, Readiness: loadedReadiness()})
	_, gen, _, _ := l.begin()
	defer l.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := l.cycle(ctx, gen); got != outcomeDiscarded {
		t.Errorf("outcome = %v, want discarded", got)
	}
	if l.State().Failures != 0 {
		t.Error("cancellation must not count as a failure")
	}
}
