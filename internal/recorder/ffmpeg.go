package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/media"
)

const ffmpegReadSize = 32 * 1024

// FFmpegEncoder pipes composited raw BGR frames into an ffmpeg subprocess
// and emits its WebM output as fragments.
type FFmpegEncoder struct {
	// Path is the ffmpeg binary, "ffmpeg" when empty.
	Path   string
	FPS    int
	Logger *slog.Logger
}

// NewFFmpegEncoder creates a WebM encoder sampling at fps.
func NewFFmpegEncoder(path string, fps int) *FFmpegEncoder {
	return &FFmpegEncoder{Path: path, FPS: fps}
}

// MIMEType implements Encoder.
func (e *FFmpegEncoder) MIMEType() string { return "video/webm" }

// Extension implements Encoder.
func (e *FFmpegEncoder) Extension() string { return "webm" }

// ffmpegArgs builds the command line for a raw BGR input of the given size.
func ffmpegArgs(width, height, fps int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", "-",
		"-an",
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-f", "webm",
		"-",
	}
}

// Encode implements Encoder. The first composite frame fixes the output size.
func (e *FFmpegEncoder) Encode(ctx context.Context, stream *media.Stream, onFragment FragmentHandler) (Encoding, error) {
	tracks := stream.VideoTracks()
	if len(tracks) == 0 {
		return nil, ErrNoVideoTrack
	}

	first, err := compositeFrame(tracks)
	if err != nil {
		return nil, fmt.Errorf("read first frame: %w", err)
	}

	fps := e.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	path := e.Path
	if path == "" {
		path = "ffmpeg"
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// The subprocess outlives ctx; it is stopped by Finalize.
	cmd := exec.Command(path, ffmpegArgs(first.Cols(), first.Rows(), fps)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		first.Close()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		first.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		first.Close()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	enc := &ffmpegEncoding{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     stdout,
		tracks:     tracks,
		cols:       first.Cols(),
		rows:       first.Rows(),
		interval:   time.Second / time.Duration(fps),
		onFragment: onFragment,
		logger:     logger.With("component", "ffmpeg"),
		stopCh:     make(chan struct{}),
		writerDone: make(chan struct{}),
		readerDone: make(chan struct{}),
	}

	go enc.read()
	go enc.write(first)

	return enc, nil
}

type ffmpegEncoding struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     io.Reader
	tracks     []media.Track
	cols, rows int
	interval   time.Duration
	onFragment FragmentHandler
	logger     *slog.Logger

	stopOnce   sync.Once
	stopCh     chan struct{}
	writerDone chan struct{}
	readerDone chan struct{}
}

// write feeds frames to ffmpeg until stopped, then closes its stdin.
func (e *ffmpegEncoding) write(first *gocv.Mat) {
	defer close(e.writerDone)
	defer e.stdin.Close()

	err := e.writeFrame(first)
	first.Close()
	if err != nil {
		e.logger.Warn("ffmpeg input closed", "error", err)
		return
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			frame, err := compositeFrame(e.tracks)
			if err != nil {
				e.logger.Debug("skipping frame", "error", err)
				continue
			}
			err = e.writeFrame(frame)
			frame.Close()
			if err != nil {
				e.logger.Warn("ffmpeg input closed", "error", err)
				return
			}
		}
	}
}

func (e *ffmpegEncoding) writeFrame(frame *gocv.Mat) error {
	if frame.Cols() != e.cols || frame.Rows() != e.rows {
		return fmt.Errorf("frame size changed to %dx%d", frame.Cols(), frame.Rows())
	}
	_, err := e.stdin.Write(frame.ToBytes())
	return err
}

// read forwards ffmpeg output as fragments until EOF.
func (e *ffmpegEncoding) read() {
	defer close(e.readerDone)

	buf := make([]byte, ffmpegReadSize)
	for {
		n, err := e.stdout.Read(buf)
		if n > 0 {
			fragment := make([]byte, n)
			copy(fragment, buf[:n])
			e.onFragment(fragment)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.logger.Warn("ffmpeg output read failed", "error", err)
			}
			return
		}
	}
}

// Finalize implements Encoding. It closes ffmpeg's input and waits for the
// trailing output.
func (e *ffmpegEncoding) Finalize(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })

	for _, ch := range []chan struct{}{e.writerDone, e.readerDone} {
		select {
		case <-ch:
		case <-ctx.Done():
			e.cmd.Process.Kill()
			e.cmd.Wait()
			return ctx.Err()
		}
	}

	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited: %w", err)
	}
	return nil
}
