// Package main provides a hook that shows a desktop notification when a
// recording is saved. It uses osascript on macOS and notify-send elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the hook executor.
type Request struct {
	Event    string          `json:"event"`
	Key      string          `json:"key"`
	Filename string          `json:"filename"`
	Path     string          `json:"path"`
	Size     int             `json:"size"`
	MIMEType string          `json:"mime_type"`
	Config   json.RawMessage `json:"config"`
}

// Response represents the output to the hook executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// settings is the manifest config block.
type settings struct {
	Title string `json:"title"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != "recording.saved" {
		writeErrorResponse(fmt.Sprintf("unsupported event: %s", req.Event))
		return
	}

	s := settings{Title: "Facetrack"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &s); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	msg := message(req)
	if err := notify(s.Title, msg); err != nil {
		writeErrorResponse(fmt.Sprintf("notify failed: %v", err))
		return
	}

	data, _ := json.Marshal(map[string]string{"message": msg})
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

// message formats the notification body.
func message(req Request) string {
	where := req.Filename
	if req.Path != "" {
		where = req.Path
	}
	return fmt.Sprintf("Recording saved: %s (%d KB)", where, (req.Size+1023)/1024)
}

func notify(title, body string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.Command("osascript", "-e", script)
	} else {
		cmd = exec.Command("notify-send", title, body)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
