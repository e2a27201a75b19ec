// Package hook discovers and runs external executables that react to
// recording events.
package hook

import "encoding/json"

// EventRecordingSaved fires after a recording has been finalised and persisted.
const EventRecordingSaved = "recording.saved"

// Manifest describes a hook's metadata and the events it subscribes to.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Subscribes reports whether the manifest lists event.
func (m Manifest) Subscribes(event string) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Request is written to a hook's stdin.
type Request struct {
	Event    string          `json:"event"`
	Key      string          `json:"key"`
	Filename string          `json:"filename"`
	Path     string          `json:"path,omitempty"`
	Size     int             `json:"size"`
	MIMEType string          `json:"mime_type"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// Response is read from a hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
