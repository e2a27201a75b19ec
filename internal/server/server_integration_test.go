package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/media"
	"github.com/ayusman/facetrack/internal/recorder"
	"github.com/ayusman/facetrack/internal/status"
	"github.com/ayusman/facetrack/internal/store"
	"github.com/ayusman/facetrack/internal/tracker"
)

// fakeApp is a Controller recording into a real store.
type fakeApp struct {
	mu        sync.Mutex
	recording bool
	chunks    [][]byte
	persister recorder.Persister
	events    chan tracker.Event
	frame     *gocv.Mat
}

func newFakeApp(p recorder.Persister) *fakeApp {
	return &fakeApp{persister: p, events: make(chan tracker.Event, 8)}
}

func (a *fakeApp) StartRecording(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recording {
		return recorder.ErrAlreadyRecording
	}
	a.recording = true
	a.chunks = [][]byte{[]byte("frame-1"), []byte("frame-2")}
	return nil
}

func (a *fakeApp) StopRecording(ctx context.Context) (*media.Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.recording {
		return nil, nil
	}
	a.recording = false
	artifact := media.Concat(a.chunks, "video/x-motion-jpeg", "mjpeg")
	return artifact, a.persister.Persist(ctx, recorder.DefaultPersistKey, artifact)
}

func (a *fakeApp) Status() status.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return status.Snapshot{Recording: a.recording, ModelsLoaded: true}
}

func (a *fakeApp) Subscribe(buffer int) (<-chan tracker.Event, func()) {
	return a.events, func() {}
}

func (a *fakeApp) PreviewFrame() (*gocv.Mat, error) {
	if a.frame == nil {
		return nil, errors.New("no frame")
	}
	m := a.frame.Clone()
	return &m, nil
}

func TestAPI_RecordingWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	app := newFakeApp(s.Recordings())
	srv := New(Config{App: app, Recordings: s.Recordings(), HookRuns: s.HookRuns()})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Start recording
	resp, err := client.Post(ts.URL+"/api/recording/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/recording/start error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// 2. Starting again is rejected
	resp, _ = client.Post(ts.URL+"/api/recording/start", "application/json", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	// 3. Status reflects the recording
	resp, _ = client.Get(ts.URL + "/api/status")
	var st struct {
		Recording bool `json:"recording"`
	}
	json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if !st.Recording {
		t.Error("status should report recording")
	}

	// 4. Stop recording
	resp, _ = client.Post(ts.URL+"/api/recording/stop", "application/json", nil)
	var stopped struct {
		Size     int    `json:"size"`
		Filename string `json:"filename"`
	}
	json.NewDecoder(resp.Body).Decode(&stopped)
	resp.Body.Close()
	if stopped.Size != 14 || stopped.Filename != "face-recording.mjpeg" {
		t.Errorf("unexpected stop response %+v", stopped)
	}

	// 5. Download the persisted recording
	resp, _ = client.Get(ts.URL + "/api/recordings/" + recorder.DefaultPersistKey)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "frame-1frame-2" {
		t.Errorf("downloaded %q", body)
	}
	if got := resp.Header.Get("Content-Disposition"); got != "attachment; filename=face-recording.mjpeg" {
		t.Errorf("Content-Disposition = %q", got)
	}

	// 6. Delete it
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/recordings/"+recorder.DefaultPersistKey, nil)
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestDetectionsHandler(t *testing.T) {
	app := newFakeApp(nil)
	ts := httptest.NewServer(New(Config{App: app}))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/detections"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	space := detector.Size{Width: 640, Height: 480}
	app.events <- tracker.Event{
		State:  tracker.State{Cycle: 3, LastPoll: time.UnixMilli(1700000000000), FaceDetected: true, Faces: 1},
		Result: detector.Result{Space: space, Faces: []detector.Face{detector.FrontalFace()}},
	}
	app.events <- tracker.Event{
		State:  tracker.State{Cycle: 4},
		Result: detector.Result{Space: space},
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var msg DetectionMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if msg.Cycle != 3 || len(msg.Faces) != 1 || msg.Space != space {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Timestamp != 1700000000000 {
		t.Errorf("Timestamp = %d", msg.Timestamp)
	}
	if !msg.Status.ModelsLoaded {
		t.Error("message should carry status")
	}

	var raw map[string]json.RawMessage
	if err := conn.ReadJSON(&raw); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if string(raw["faces"]) != "[]" {
		t.Errorf("faces = %s, want []", raw["faces"])
	}
}

func TestStreamHandler(t *testing.T) {
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	app := newFakeApp(nil)
	app.frame = &frame

	ts := httptest.NewServer(New(Config{App: app}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "multipart/x-mixed-replace") {
		t.Fatalf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	r := bufio.NewReader(resp.Body)
	boundary, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read boundary: %v", err)
	}
	if strings.TrimSpace(boundary) != "--frame" {
		t.Errorf("boundary = %q", boundary)
	}
	partType, _ := r.ReadString('\n')
	if strings.TrimSpace(partType) != "Content-Type: image/jpeg" {
		t.Errorf("part header = %q", partType)
	}
}
