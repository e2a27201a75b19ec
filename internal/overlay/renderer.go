// Package overlay paints detection markers onto the display surface drawn
// over the video feed.
package overlay

import (
	"sync"

	"github.com/ayusman/facetrack/internal/detector"
)

// Surface is a display surface the renderer paints on.
// Drawing calls go to a back buffer that becomes visible on Present.
type Surface interface {
	Size() detector.Size
	Clear()
	DrawBox(r detector.Rect)
	DrawLandmark(p detector.Point)
	Present()
}

// Renderer maps detection results into the surface's coordinate space and
// repaints the surface from scratch on every call.
type Renderer struct {
	surface   Surface
	mu        sync.Mutex
	lastCycle uint64
	painted   int
}

// NewRenderer creates a renderer for the given surface.
func NewRenderer(s Surface) *Renderer {
	return &Renderer{surface: s}
}

// Render clears the surface and paints every face box and landmark of
// result, scaled from the result's space to the surface's current size.
// When either size is unknown nothing is painted and ok is false.
func (r *Renderer) Render(cycle uint64, result detector.Result) (scaled detector.Result, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	scaled, ok = result.ScaleTo(r.surface.Size())
	if !ok {
		return detector.Result{}, false
	}

	r.surface.Clear()
	for _, f := range scaled.Faces {
		r.surface.DrawBox(f.Box)
		for _, p := range f.Landmarks {
			r.surface.DrawLandmark(p)
		}
	}
	r.surface.Present()

	r.lastCycle = cycle
	r.painted = len(scaled.Faces)

	return scaled, true
}

// LastCycle returns the loop cycle of the most recent paint.
func (r *Renderer) LastCycle() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCycle
}

// Painted returns the number of faces painted by the most recent paint.
func (r *Renderer) Painted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.painted
}
