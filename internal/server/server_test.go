package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{})
	s.start = time.Now().Add(-90 * time.Second)

	tests := []struct {
		method string
		want   int
	}{
		{method: http.MethodGet, want: http.StatusOK},
		{method: http.MethodPost, want: http.StatusMethodNotAllowed},
		{method: http.MethodPut, want: http.StatusMethodNotAllowed},
		{method: http.MethodDelete, want: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/health", nil))

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}

			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %s", ct)
			}
			var body struct {
				Status string `json:"status"`
				Uptime string `json:"uptime"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != "ok" || body.Uptime == "" {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestServer_Routes(t *testing.T) {
	webDir := t.TempDir()
	index := "<html><body>facetrack</body></html>"
	os.WriteFile(filepath.Join(webDir, "index.html"), []byte(index), 0o644)
	os.WriteFile(filepath.Join(webDir, "app.js"), []byte("console.log(1)"), 0o644)

	tests := []struct {
		name   string
		config Config
		path   string
		want   int
	}{
		{name: "unknown api path", config: Config{}, path: "/api/nonexistent", want: http.StatusNotFound},
		{name: "no static dir", config: Config{}, path: "/", want: http.StatusNotFound},
		{name: "status without app", config: Config{}, path: "/api/status", want: http.StatusNotFound},
		{name: "recording without app", config: Config{}, path: "/api/recording", want: http.StatusNotFound},
		{name: "recordings without store", config: Config{}, path: "/api/recordings", want: http.StatusNotFound},
		{name: "index", config: Config{StaticDir: webDir}, path: "/", want: http.StatusOK},
		{name: "asset", config: Config{StaticDir: webDir}, path: "/app.js", want: http.StatusOK},
		{name: "missing asset", config: Config{StaticDir: webDir}, path: "/missing.css", want: http.StatusNotFound},
		{name: "status with app", config: Config{App: newFakeApp(nil)}, path: "/api/status", want: http.StatusOK},
		{name: "recording state", config: Config{App: newFakeApp(nil)}, path: "/api/recording", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.config)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
			if tt.path == "/" && tt.want == http.StatusOK && rec.Body.String() != index {
				t.Errorf("index body = %q", rec.Body.String())
			}
		})
	}
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	s := New(Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
