package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/status"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// DetectionMessage is sent to websocket clients once per loop cycle.
type DetectionMessage struct {
	Cycle     uint64          `json:"cycle"`
	Space     detector.Size   `json:"space"`
	Faces     []detector.Face `json:"faces"`
	Status    status.Snapshot `json:"status"`
	Timestamp int64           `json:"timestamp"`
}

// DetectionsHandler streams detection results over a WebSocket.
type DetectionsHandler struct {
	app    Controller
	logger *slog.Logger
}

// NewDetectionsHandler creates a new DetectionsHandler.
func NewDetectionsHandler(app Controller, logger *slog.Logger) *DetectionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetectionsHandler{app: app, logger: logger}
}

// ServeHTTP upgrades the connection and forwards loop events until the
// client disconnects.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.app.Subscribe(8)
	defer cancel()

	// Reads detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			faces := ev.Result.Faces
			if faces == nil {
				faces = []detector.Face{}
			}
			msg := DetectionMessage{
				Cycle:     ev.State.Cycle,
				Space:     ev.Result.Space,
				Faces:     faces,
				Status:    h.app.Status(),
				Timestamp: ev.State.LastPoll.UnixMilli(),
			}

			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
