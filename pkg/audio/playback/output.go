package playback

import (
	"sync"
	"time"
)

// PacedOutput discards samples at real-time speed. It stands in for a
// speaker in headless runs so the renderer clock still tracks wall time.
type PacedOutput struct {
	rate int

	mu      sync.Mutex
	started time.Time
	written int64
}

// NewPacedOutput creates a PacedOutput for the given sample rate.
func NewPacedOutput(rate int) *PacedOutput {
	return &PacedOutput{rate: rate}
}

// Write blocks until the wall clock catches up with the samples written so far.
func (o *PacedOutput) Write(samples []int16) (int, error) {
	o.mu.Lock()
	if o.started.IsZero() {
		o.started = time.Now()
	}
	o.written += int64(len(samples))
	due := o.started.Add(time.Duration(o.written) * time.Second / time.Duration(o.rate))
	o.mu.Unlock()

	if wait := time.Until(due); wait > 0 {
		time.Sleep(wait)
	}
	return len(samples), nil
}

// Written returns the number of samples accepted.
func (o *PacedOutput) Written() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.written
}
