package recorder

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/media"
)

func solid(rows, cols int, b, g, r float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func matTrack(m gocv.Mat) media.Track {
	return media.NewFuncTrack(media.KindVideo, func() (*gocv.Mat, error) {
		c := m.Clone()
		return &c, nil
	})
}

func TestCompositeFrame(t *testing.T) {
	base := solid(8, 8, 50, 50, 50)
	defer base.Close()

	layer := solid(8, 8, 0, 0, 0)
	defer layer.Close()
	gocv.Rectangle(&layer, image.Rect(2, 2, 5, 5), color.RGBA{R: 255, A: 255}, -1)

	frame, err := compositeFrame([]media.Track{matTrack(base), matTrack(layer)})
	if err != nil {
		t.Fatalf("compositeFrame() error = %v", err)
	}
	defer frame.Close()

	if got := frame.GetVecbAt(3, 3); got[0] != 0 || got[1] != 0 || got[2] != 255 {
		t.Errorf("overlay pixel = %v, want red", got)
	}
	if got := frame.GetVecbAt(0, 0); got[0] != 50 || got[1] != 50 || got[2] != 50 {
		t.Errorf("background pixel = %v, want base gray", got)
	}
}

func TestCompositeFrame_ResizesLayer(t *testing.T) {
	base := solid(8, 8, 0, 0, 0)
	defer base.Close()
	layer := solid(4, 4, 0, 255, 0)
	defer layer.Close()

	frame, err := compositeFrame([]media.Track{matTrack(base), matTrack(layer)})
	if err != nil {
		t.Fatalf("compositeFrame() error = %v", err)
	}
	defer frame.Close()

	if frame.Cols() != 8 || frame.Rows() != 8 {
		t.Fatalf("frame size = %dx%d, want 8x8", frame.Cols(), frame.Rows())
	}
	if got := frame.GetVecbAt(7, 7); got[1] != 255 {
		t.Errorf("corner pixel = %v, want green", got)
	}
}

func TestCompositeFrame_NoTracks(t *testing.T) {
	if _, err := compositeFrame(nil); err != ErrNoVideoTrack {
		t.Errorf("error = %v, want ErrNoVideoTrack", err)
	}
}

func TestMJPEGEncoder(t *testing.T) {
	base := solid(48, 64, 30, 60, 90)
	defer base.Close()

	enc := NewMJPEGEncoder(100)
	if enc.MIMEType() != "video/x-motion-jpeg" || enc.Extension() != "mjpeg" {
		t.Fatalf("unexpected container %q/%q", enc.MIMEType(), enc.Extension())
	}

	s := &session{}
	encoding, err := enc.Encode(context.Background(), media.NewStream(matTrack(base)), s.append)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(s.snapshot()) < 2 {
		if time.Now().After(deadline) {
			encoding.Finalize(context.Background())
			t.Fatal("no fragments produced")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := encoding.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	n := len(s.snapshot())
	time.Sleep(50 * time.Millisecond)
	chunks := s.snapshot()
	if len(chunks) != n {
		t.Error("fragments produced after Finalize")
	}
	for i, c := range chunks {
		if len(c) < 2 || c[0] != 0xFF || c[1] != 0xD8 {
			t.Errorf("fragment %d is not a JPEG", i)
		}
	}
}

func TestMJPEGEncoder_NoVideo(t *testing.T) {
	_, err := NewMJPEGEncoder(10).Encode(context.Background(), media.NewStream(), func([]byte) {})
	if err != ErrNoVideoTrack {
		t.Errorf("Encode() error = %v, want ErrNoVideoTrack", err)
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := strings.Join(ffmpegArgs(640, 480, 15), " ")
	for _, want := range []string{"-s 640x480", "-r 15", "-pix_fmt bgr24", "-f webm -"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}

	enc := NewFFmpegEncoder("", 15)
	if enc.MIMEType() != "video/webm" || enc.Extension() != "webm" {
		t.Errorf("unexpected container %q/%q", enc.MIMEType(), enc.Extension())
	}
}
