package pcm

import (
	"math"
	"sync/atomic"
)

// Gain is a linear volume factor that may be changed while audio is being
// mixed. Negative values clamp to zero. The zero value is unity gain.
type Gain struct {
	// bits holds the factor minus one so the zero value means 1.0.
	bits atomic.Uint32
}

// Load returns the current factor.
func (g *Gain) Load() float32 {
	return math.Float32frombits(g.bits.Load()) + 1
}

// Store sets the factor.
func (g *Gain) Store(v float32) {
	g.bits.Store(math.Float32bits(max(v, 0) - 1))
}

// Apply scales samples in place. Unity gain leaves them untouched.
func (g *Gain) Apply(samples []float32) {
	v := g.Load()
	if v == 1 {
		return
	}
	for i := range samples {
		samples[i] *= v
	}
}
