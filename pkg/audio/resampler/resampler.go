package resampler

import (
	"errors"
	"fmt"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrClosed is returned by Process after Close.
var ErrClosed = errors.New("resampler: closed")

// Resampler converts consecutive blocks of a mono stream from one sample
// rate to another.
type Resampler struct {
	srcRate int
	dstRate int

	mu  sync.Mutex
	rs  resampling.Resampler
	in  []float64
	eof bool
}

// New creates a Resampler from srcRate to dstRate. Equal rates produce a
// passthrough resampler.
func New(srcRate, dstRate int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	r := &Resampler{srcRate: srcRate, dstRate: dstRate}
	if srcRate == dstRate {
		return r, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}
	r.rs = rs
	return r, nil
}

// SrcRate returns the input sample rate.
func (r *Resampler) SrcRate() int { return r.srcRate }

// DstRate returns the output sample rate.
func (r *Resampler) DstRate() int { return r.dstRate }

// Passthrough reports whether input and output rates are equal.
func (r *Resampler) Passthrough() bool { return r.srcRate == r.dstRate }

// Process resamples one block. The filter delays output, so early calls may
// return fewer samples than the rate ratio suggests. Output samples are
// clamped to [-1, 1]. This method is safe for concurrent use but blocks of a
// single stream must be submitted in order.
func (r *Resampler) Process(in []float32) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.eof {
		return nil, ErrClosed
	}
	if r.rs == nil {
		return append([]float32(nil), in...), nil
	}

	if cap(r.in) < len(in) {
		r.in = make([]float64, len(in))
	}
	r.in = r.in[:len(in)]
	for i, s := range in {
		r.in[i] = float64(s)
	}
	res, err := r.rs.Process(r.in)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	out := make([]float32, len(res))
	for i, s := range res {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		out[i] = float32(s)
	}
	return out, nil
}

// Close releases the filter state. Subsequent Process calls return ErrClosed.
func (r *Resampler) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eof = true
	r.rs = nil
	r.in = nil
	return nil
}

// Downmix averages interleaved frames of the given channel count into mono.
// Trailing partial frames are dropped.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	n := len(interleaved) / channels
	out := make([]float32, n)
	for i := range n {
		var sum float32
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
