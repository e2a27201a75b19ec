// Package model holds the detection model locations and the one-way
// readiness latch flipped once the model has loaded.
package model

import (
	"sync"
	"sync/atomic"
)

// Readiness is a one-way Loading -> Loaded latch.
// MarkLoaded is meant to be called only by the model-load task.
type Readiness struct {
	loaded atomic.Bool
	once   sync.Once
	done   chan struct{}
}

// NewReadiness returns a latch in the Loading state.
func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// MarkLoaded flips the latch. Only the first call has an effect.
func (r *Readiness) MarkLoaded() {
	r.once.Do(func() {
		r.loaded.Store(true)
		close(r.done)
	})
}

// Loaded reports whether the model has finished loading.
func (r *Readiness) Loaded() bool {
	if r == nil {
		return false
	}
	return r.loaded.Load()
}

// Done returns a channel closed when the model has loaded.
func (r *Readiness) Done() <-chan struct{} {
	return r.done
}
