package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/media"
)

// MJPEG encoder defaults.
const (
	DefaultFPS         = 15
	DefaultJPEGQuality = 80
)

// MJPEGEncoder samples the composite stream at a fixed rate and emits one
// JPEG fragment per frame. The concatenated fragments form a motion-JPEG
// file.
type MJPEGEncoder struct {
	FPS     int
	Quality int
	Logger  *slog.Logger
}

// NewMJPEGEncoder creates an MJPEG encoder sampling at fps.
func NewMJPEGEncoder(fps int) *MJPEGEncoder {
	return &MJPEGEncoder{FPS: fps, Quality: DefaultJPEGQuality}
}

// MIMEType implements Encoder.
func (e *MJPEGEncoder) MIMEType() string { return "video/x-motion-jpeg" }

// Extension implements Encoder.
func (e *MJPEGEncoder) Extension() string { return "mjpeg" }

// Encode implements Encoder.
func (e *MJPEGEncoder) Encode(ctx context.Context, stream *media.Stream, onFragment FragmentHandler) (Encoding, error) {
	tracks := stream.VideoTracks()
	if len(tracks) == 0 {
		return nil, ErrNoVideoTrack
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fps := e.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enc := &mjpegEncoding{
		tracks:     tracks,
		interval:   time.Second / time.Duration(fps),
		quality:    quality,
		onFragment: onFragment,
		logger:     logger.With("component", "mjpeg"),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go enc.run()

	return enc, nil
}

type mjpegEncoding struct {
	tracks     []media.Track
	interval   time.Duration
	quality    int
	onFragment FragmentHandler
	logger     *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func (e *mjpegEncoding) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if err := e.frame(); err != nil {
				e.logger.Debug("skipping frame", "error", err)
			}
		}
	}
}

func (e *mjpegEncoding) frame() error {
	frame, err := compositeFrame(e.tracks)
	if err != nil {
		return err
	}
	defer frame.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{gocv.IMWriteJpegQuality, e.quality})
	if err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close.
	fragment := make([]byte, buf.Len())
	copy(fragment, buf.GetBytes())
	e.onFragment(fragment)
	return nil
}

// Finalize implements Encoding.
func (e *mjpegEncoding) Finalize(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
