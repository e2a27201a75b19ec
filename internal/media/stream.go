// Package media provides the stream, track and artifact types shared by the
// capture, overlay and recorder packages.
package media

import (
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Kind identifies the type of media carried by a track.
type Kind string

const (
	// KindVideo is a track producing raster frames.
	KindVideo Kind = "video"
	// KindAudio is a track producing audio samples.
	KindAudio Kind = "audio"
)

// Track is a single source of frames inside a Stream.
type Track interface {
	// ID returns the unique track identifier.
	ID() string

	// Kind returns the media kind of the track.
	Kind() Kind

	// ReadFrame returns the current frame of the track.
	// The caller is responsible for closing the returned Mat.
	ReadFrame() (*gocv.Mat, error)
}

// Stream is an ordered set of tracks that are consumed together.
type Stream struct {
	id     string
	tracks []Track
}

// NewStream creates a Stream over the given tracks. Nil tracks are ignored.
func NewStream(tracks ...Track) *Stream {
	s := &Stream{
		id:     uuid.NewString(),
		tracks: make([]Track, 0, len(tracks)),
	}
	for _, t := range tracks {
		if t != nil {
			s.tracks = append(s.tracks, t)
		}
	}
	return s
}

// ID returns the stream identifier.
func (s *Stream) ID() string {
	return s.id
}

// Tracks returns all tracks of the stream in order.
func (s *Stream) Tracks() []Track {
	if s == nil {
		return nil
	}
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// VideoTracks returns the video tracks of the stream in order.
func (s *Stream) VideoTracks() []Track {
	if s == nil {
		return nil
	}
	var out []Track
	for _, t := range s.tracks {
		if t.Kind() == KindVideo {
			out = append(out, t)
		}
	}
	return out
}

// Combine builds a composite stream from every track of base followed by the
// video tracks of each overlay stream.
func Combine(base *Stream, overlays ...*Stream) *Stream {
	tracks := base.Tracks()
	for _, o := range overlays {
		tracks = append(tracks, o.VideoTracks()...)
	}
	return NewStream(tracks...)
}

// FuncTrack adapts a frame function into a Track.
type FuncTrack struct {
	id   string
	kind Kind
	read func() (*gocv.Mat, error)
}

// NewFuncTrack creates a Track of the given kind backed by read.
func NewFuncTrack(kind Kind, read func() (*gocv.Mat, error)) *FuncTrack {
	return &FuncTrack{
		id:   uuid.NewString(),
		kind: kind,
		read: read,
	}
}

// ID returns the track identifier.
func (t *FuncTrack) ID() string { return t.id }

// Kind returns the track kind.
func (t *FuncTrack) Kind() Kind { return t.kind }

// ReadFrame calls the backing frame function.
func (t *FuncTrack) ReadFrame() (*gocv.Mat, error) { return t.read() }
