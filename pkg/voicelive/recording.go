package voicelive

import (
	"fmt"
	"sync"
	"time"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
)

// Recording accumulates the decoded output of a session for export. It is
// append-only and rejects appends once sealed.
type Recording struct {
	rate int

	mu      sync.Mutex
	chunks  []pcm.FloatChunk
	samples int
	sealed  bool
}

// NewRecording creates a Recording for chunks at the given rate.
func NewRecording(rate int) *Recording {
	return &Recording{rate: rate}
}

// SampleRate returns the rate every chunk must share.
func (r *Recording) SampleRate() int { return r.rate }

// Append adds chunk. Chunks are immutable, so they are stored without
// copying.
func (r *Recording) Append(chunk pcm.FloatChunk) error {
	if chunk.SampleRate() != r.rate {
		return fmt.Errorf("%w: %d != %d", ErrRateMismatch, chunk.SampleRate(), r.rate)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if chunk.Len() == 0 {
		return nil
	}
	r.chunks = append(r.chunks, chunk)
	r.samples += chunk.Len()
	return nil
}

// Seal rejects further appends.
func (r *Recording) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Recording) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// Len returns the number of recorded chunks.
func (r *Recording) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Duration returns the total recorded duration.
func (r *Recording) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.samples) * time.Second / time.Duration(r.rate)
}

// Samples returns all recorded samples concatenated in arrival order.
func (r *Recording) Samples() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float32, 0, r.samples)
	for _, c := range r.chunks {
		out = append(out, c.Samples()...)
	}
	return out
}

// Export returns the recording as a mono 16-bit WAV file. It fails with
// EmptySession when nothing was recorded.
func (r *Recording) Export() ([]byte, error) {
	if r.Len() == 0 {
		return nil, newError(EmptySession, "export", nil)
	}
	return pcm.BuildContainer(r.Samples(), r.rate), nil
}
