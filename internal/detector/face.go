package detector

import "image"

// Point is a landmark position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned face region.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size is the resolution of a coordinate space.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero reports whether either dimension is not yet known.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Face is a single detected face.
type Face struct {
	Box       Rect    `json:"box"`
	Landmarks []Point `json:"landmarks"`
	Score     float64 `json:"score"`
}

// Result is the set of faces found in one frame, expressed in the
// coordinate space Space.
type Result struct {
	Space Size   `json:"space"`
	Faces []Face `json:"faces"`
}

// FaceDetected reports whether the result holds at least one face.
func (r Result) FaceDetected() bool {
	return len(r.Faces) > 0
}

// ScaleTo re-expresses the result in the dst coordinate space using
// independent horizontal and vertical ratios. It returns false when either
// space has an unknown dimension.
func (r Result) ScaleTo(dst Size) (Result, bool) {
	if r.Space.IsZero() || dst.IsZero() {
		return Result{}, false
	}

	sx := float64(dst.Width) / float64(r.Space.Width)
	sy := float64(dst.Height) / float64(r.Space.Height)

	scaled := Result{
		Space: dst,
		Faces: make([]Face, len(r.Faces)),
	}

	for i, f := range r.Faces {
		sf := Face{
			Box: Rect{
				X:      f.Box.X * sx,
				Y:      f.Box.Y * sy,
				Width:  f.Box.Width * sx,
				Height: f.Box.Height * sy,
			},
			Score: f.Score,
		}
		if len(f.Landmarks) > 0 {
			sf.Landmarks = make([]Point, len(f.Landmarks))
			for j, p := range f.Landmarks {
				sf.Landmarks[j] = Point{X: p.X * sx, Y: p.Y * sy}
			}
		}
		scaled.Faces[i] = sf
	}

	return scaled, true
}

// Rectangle converts the region to integer image coordinates.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(int(r.X+0.5), int(r.Y+0.5), int(r.X+r.Width+0.5), int(r.Y+r.Height+0.5))
}

// ImagePoint converts the point to integer image coordinates.
func (p Point) ImagePoint() image.Point {
	return image.Pt(int(p.X+0.5), int(p.Y+0.5))
}

func rectFromImage(r image.Rectangle) Rect {
	return Rect{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}
