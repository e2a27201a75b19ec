package media

import (
	"bytes"
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func nopRead() (*gocv.Mat, error) { return nil, nil }

func TestCombine(t *testing.T) {
	video := NewStream(NewFuncTrack(KindVideo, nopRead), NewFuncTrack(KindAudio, nopRead))
	overlay := NewStream(NewFuncTrack(KindVideo, nopRead), NewFuncTrack(KindAudio, nopRead))

	combined := Combine(video, overlay)

	tracks := combined.Tracks()
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}

	// Every base track first, then only the overlay's video track.
	want := []string{video.Tracks()[0].ID(), video.Tracks()[1].ID(), overlay.VideoTracks()[0].ID()}
	for i, tr := range tracks {
		if tr.ID() != want[i] {
			t.Errorf("track %d: expected %s, got %s", i, want[i], tr.ID())
		}
	}

	if got := len(combined.VideoTracks()); got != 2 {
		t.Errorf("expected 2 video tracks, got %d", got)
	}

	if combined.ID() == video.ID() || combined.ID() == "" {
		t.Error("combined stream should get its own id")
	}
}

func TestNilStream(t *testing.T) {
	var s *Stream

	if s.Tracks() != nil {
		t.Error("expected nil tracks for nil stream")
	}
	if s.VideoTracks() != nil {
		t.Error("expected nil video tracks for nil stream")
	}
}

func TestConcat(t *testing.T) {
	frags := [][]byte{[]byte("abc"), {}, []byte("de")}

	a := Concat(frags, "video/webm", ".webm")

	if !bytes.Equal(a.Data, []byte("abcde")) {
		t.Errorf("expected abcde, got %q", a.Data)
	}
	if a.Size() != 5 {
		t.Errorf("expected size 5, got %d", a.Size())
	}
	if a.Filename() != "face-recording.webm" {
		t.Errorf("unexpected filename %q", a.Filename())
	}

	var nilArtifact *Artifact
	if nilArtifact.Size() != 0 {
		t.Error("nil artifact should have size 0")
	}
}

func TestFrameSlot(t *testing.T) {
	slot := NewFrameSlot()

	if _, err := slot.ReadFrame(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("empty slot ReadFrame() error = %v, want ErrNoFrame", err)
	}

	slot.Store(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(7, 0, 0, 0), 4, 4, gocv.MatTypeCV8UC3))

	// Two readers see the same frame and own independent copies.
	a, err := slot.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	b, _ := slot.ReadFrame()
	if a.GetVecbAt(0, 0)[0] != 7 || b.GetVecbAt(0, 0)[0] != 7 {
		t.Error("readers should see the stored frame")
	}
	a.Close()
	if b.Empty() {
		t.Error("closing one clone must not affect another")
	}
	b.Close()

	slot.Store(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(9, 0, 0, 0), 4, 4, gocv.MatTypeCV8UC3))
	if slot.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", slot.Seq())
	}
	c, _ := slot.ReadFrame()
	if c.GetVecbAt(0, 0)[0] != 9 {
		t.Error("reader should see the newest frame")
	}
	c.Close()

	slot.Close()
	if _, err := slot.ReadFrame(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("closed slot ReadFrame() error = %v, want ErrNoFrame", err)
	}
	slot.Store(gocv.NewMat())
	if slot.Seq() != 2 {
		t.Error("stores after Close should be dropped")
	}
}
