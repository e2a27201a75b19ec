// Package tray provides the system tray menu: a recording toggle, the live
// status rows and shortcuts to the viewer.
package tray

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/facetrack/internal/media"
	"github.com/ayusman/facetrack/internal/status"
)

// RefreshInterval is how often the status rows are updated.
const RefreshInterval = 500 * time.Millisecond

// Controller is the part of the application driven from the menu.
type Controller interface {
	ToggleRecording(ctx context.Context) (bool, *media.Artifact, error)
	Status() status.Snapshot
}

// Tray represents the system tray application.
type Tray struct {
	app    Controller
	logger *slog.Logger

	onViewer func()
	onQuit   func()
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuRecord *systray.MenuItem
	menuRows   []*systray.MenuItem
	stopCh     chan struct{}
}

// New creates a new Tray bound to app.
func New(app Controller, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		app:    app,
		logger: logger.With("component", "tray"),
		stopCh: make(chan struct{}),
	}
}

// OnViewer sets the callback function to be called when the viewer menu item is clicked.
func (t *Tray) OnViewer(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onViewer = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray and unblocks Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Facetrack")
	systray.SetTooltip("Facetrack Face Tracking")

	snap := t.app.Status()
	t.menuRecord = systray.AddMenuItem(recordTitle(snap.Recording), "Start or stop recording")
	systray.AddSeparator()

	for _, row := range snap.Rows() {
		item := systray.AddMenuItem(row.String(), "")
		item.Disable()
		t.menuRows = append(t.menuRows, item)
	}
	systray.AddSeparator()

	menuViewer := systray.AddMenuItem("Open Viewer...", "Open the viewer in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Facetrack")

	go t.refresh()

	go func() {
		for {
			select {
			case <-t.menuRecord.ClickedCh:
				t.handleRecord()
			case <-menuViewer.ClickedCh:
				t.handleViewer()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	close(t.stopCh)
}

// refresh keeps the menu in step with the application status.
func (t *Tray) refresh() {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.update(t.app.Status())
		}
	}
}

func (t *Tray) update(snap status.Snapshot) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuRecord != nil {
		t.menuRecord.SetTitle(recordTitle(snap.Recording))
	}
	for i, row := range snap.Rows() {
		if i < len(t.menuRows) {
			t.menuRows[i].SetTitle(row.String())
		}
	}
}

func (t *Tray) handleRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, artifact, err := t.app.ToggleRecording(ctx)
	if err != nil {
		t.logger.Warn("toggle recording failed", "error", err)
	}
	if artifact != nil {
		t.logger.Info("recording saved", "filename", artifact.Filename(), "size", artifact.Size())
	}
	t.update(t.app.Status())
}

func (t *Tray) handleViewer() {
	t.mu.RLock()
	callback := t.onViewer
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// recordTitle is the label of the recording toggle.
func recordTitle(recording bool) string {
	if recording {
		return "■ Stop Recording"
	}
	return "● Start Recording"
}
