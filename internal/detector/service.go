package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/model"
)

// ServiceDetector implements Detector using a Python face-landmark subprocess.
//
// Protocol: each frame is written to stdin as a 4-byte big-endian length
// followed by a JPEG; the service answers with one JSON line per frame.
// After start the service prints a single {"ready": true} line.
type ServiceDetector struct {
	config Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	loaded bool
}

// NewServiceDetector creates a new landmark service detector.
// The Python process is started by Load.
func NewServiceDetector(config Config) *ServiceDetector {
	return &ServiceDetector{config: config}
}

// Load starts the landmark service and waits for its ready line.
func (d *ServiceDetector) Load(ctx context.Context, loc model.Locations) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return nil
	}

	if _, err := os.Stat(loc.LandmarkScript); err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	// Use virtual environment Python if available
	pythonPath := findVenvPython(loc.Dir)
	if pythonPath == "" {
		pythonPath = "python3"
	}

	cmd := exec.CommandContext(ctx, pythonPath, loc.LandmarkScript,
		"--models", loc.Dir,
		"--max-faces", fmt.Sprint(d.config.MaxFaces),
		"--min-confidence", fmt.Sprint(d.config.MinConfidence),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: create stdin pipe: %v", ErrModelLoad, err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: create stdout pipe: %v", ErrModelLoad, err)
	}

	// Capture stderr for debugging
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start landmark service: %v", ErrModelLoad, err)
	}

	reader := bufio.NewReader(stdout)
	line, err := reader.ReadString('\n')
	if err != nil {
		stdin.Close()
		cmd.Wait()
		return fmt.Errorf("%w: read ready line: %v", ErrModelLoad, err)
	}

	var ready struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &ready); err != nil || !ready.Ready {
		stdin.Close()
		cmd.Wait()
		if ready.Error != "" {
			return fmt.Errorf("%w: %s", ErrModelLoad, ready.Error)
		}
		return fmt.Errorf("%w: unexpected ready line %q", ErrModelLoad, line)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = reader
	d.loaded = true

	return nil
}

// Detect sends a frame to the service and returns the detected faces.
func (d *ServiceDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, fmt.Errorf("%w: %w", ErrDetection, ErrNotLoaded)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrDetection)
	}

	// Encode frame as JPEG
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("%w: encode frame: %v", ErrDetection, err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("%w: write length: %v", ErrDetection, err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("%w: write data: %v", ErrDetection, err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrDetection, err)
	}

	return parseServiceResponse([]byte(line), d.config)
}

// Close shuts down the Python process.
func (d *ServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.loaded = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

// serviceResponse is the JSON line written by the landmark service.
type serviceResponse struct {
	Faces []serviceFace `json:"faces"`
	Error string        `json:"error,omitempty"`
}

type serviceFace struct {
	Box       Rect    `json:"box"`
	Landmarks []Point `json:"landmarks"`
	Score     float64 `json:"score"`
}

func parseServiceResponse(line []byte, config Config) ([]Face, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrDetection, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrDetection, resp.Error)
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if f.Score < config.MinConfidence {
			continue
		}
		if config.MaxFaces > 0 && len(faces) >= config.MaxFaces {
			break
		}
		faces = append(faces, Face(f))
	}

	return faces, nil
}

// findVenvPython looks for a Python interpreter in a virtual environment
// next to the model directory or the executable.
func findVenvPython(modelDir string) string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(modelDir, "venv/bin/python"),
		filepath.Join(modelDir, "../venv/bin/python"),
	}
	if execDir != "" {
		candidates = append(candidates, filepath.Join(execDir, "venv/bin/python"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
