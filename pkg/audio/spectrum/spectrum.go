// Package spectrum samples the frequency spectrum of the audio being played
// and reduces it to a volume level and bar heights for visualizers.
//
// Magnitudes follow the browser analyser-node convention: a windowed FFT,
// exponential smoothing across frames, conversion to decibels and linear
// mapping of [MinDecibels, MaxDecibels] to byte values 0..255. Reduce turns
// those bytes into a Level whose values are always within [0, 100].
package spectrum

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Analyser exposes the most recent output samples. buffer.RingBuffer
// satisfies it.
type Analyser interface {
	Latest(dst []float32) int
}

// Level is one visualizer frame.
type Level struct {
	Volume float64   `json:"volume"`
	Bars   []float64 `json:"bars"`
}

// Defaults mirror a browser AnalyserNode.
const (
	DefaultInterval    = 50 * time.Millisecond
	DefaultBars        = 16
	DefaultFFTSize     = 512
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
	DefaultSmoothing   = 0.8

	MinBars = 8
	MaxBars = 32
)

// Option configures a Sampler.
type Option func(*Sampler)

// WithInterval sets the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Sampler) { s.interval = d }
}

// WithBars sets the number of bars, clamped to [MinBars, MaxBars].
func WithBars(n int) Option {
	return func(s *Sampler) { s.bars = n }
}

// WithFFTSize sets the analysis window length. It should be a power of two.
func WithFFTSize(n int) Option {
	return func(s *Sampler) { s.size = n }
}

// WithDecibels sets the range mapped to 0..255.
func WithDecibels(min, max float64) Option {
	return func(s *Sampler) { s.minDB, s.maxDB = min, max }
}

// WithSmoothing sets the averaging constant between frames, in [0, 1).
func WithSmoothing(c float64) Option {
	return func(s *Sampler) { s.smoothing = c }
}

// Sampler polls an Analyser and produces Levels. Sample is not safe for
// concurrent use; Run owns the sampler while it runs.
type Sampler struct {
	src       Analyser
	interval  time.Duration
	bars      int
	size      int
	minDB     float64
	maxDB     float64
	smoothing float64

	fft      *fourier.FFT
	samples  []float32
	seq      []float64
	coeffs   []complex128
	smoothed []float64
	bytes    []float64
}

// NewSampler creates a Sampler reading from src.
func NewSampler(src Analyser, opts ...Option) *Sampler {
	s := &Sampler{
		src:       src,
		interval:  DefaultInterval,
		bars:      DefaultBars,
		size:      DefaultFFTSize,
		minDB:     DefaultMinDecibels,
		maxDB:     DefaultMaxDecibels,
		smoothing: DefaultSmoothing,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bars = min(max(s.bars, MinBars), MaxBars)
	if s.size < 32 {
		s.size = 32
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.maxDB <= s.minDB {
		s.minDB, s.maxDB = DefaultMinDecibels, DefaultMaxDecibels
	}
	s.smoothing = min(max(s.smoothing, 0), 0.99)

	s.fft = fourier.NewFFT(s.size)
	s.samples = make([]float32, s.size)
	s.seq = make([]float64, s.size)
	s.smoothed = make([]float64, s.size/2)
	s.bytes = make([]float64, s.size/2)
	return s
}

// Sample reads the latest window and returns its Level. Missing history is
// treated as silence.
func (s *Sampler) Sample() Level {
	clear(s.samples)
	s.src.Latest(s.samples)
	for i, v := range s.samples {
		s.seq[i] = float64(v)
	}
	window.Hann(s.seq)
	s.coeffs = s.fft.Coefficients(s.coeffs, s.seq)

	n := float64(s.size)
	scale := 255 / (s.maxDB - s.minDB)
	for k := range s.smoothed {
		mag := math.Hypot(real(s.coeffs[k]), imag(s.coeffs[k])) / n
		s.smoothed[k] = s.smoothing*s.smoothed[k] + (1-s.smoothing)*mag
		db := 20 * math.Log10(s.smoothed[k])
		s.bytes[k] = min(max((db-s.minDB)*scale, 0), 255)
	}
	// Speech energy sits in the lower half of the band.
	return Reduce(s.bytes[:len(s.bytes)/2], s.bars)
}

// Run samples every interval and passes each Level to fn until ctx is done.
func (s *Sampler) Run(ctx context.Context, fn func(Level)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(s.Sample())
		}
	}
}

// Reduce maps byte-scaled magnitudes (nominally 0..255) to a volume and
// bars equal-width groups. All outputs are clamped to [0, 100]. NaN inputs
// count as zero.
func Reduce(mags []float64, bars int) Level {
	bars = min(max(bars, MinBars), MaxBars)
	lvl := Level{Bars: make([]float64, bars)}
	if len(mags) == 0 {
		return lvl
	}

	var sum float64
	for _, m := range mags {
		sum += clean(m)
	}
	lvl.Volume = percent(sum / float64(len(mags)))

	for b := range bars {
		lo := b * len(mags) / bars
		hi := max((b+1)*len(mags)/bars, lo+1)
		if lo >= len(mags) {
			lo = len(mags) - 1
		}
		hi = min(hi, len(mags))
		var acc float64
		for _, m := range mags[lo:hi] {
			acc += clean(m)
		}
		lvl.Bars[b] = percent(acc / float64(hi-lo))
	}
	return lvl
}

func clean(m float64) float64 {
	if math.IsNaN(m) || m < 0 {
		return 0
	}
	return m
}

func percent(byteMag float64) float64 {
	return min(max(byteMag/255*100, 0), 100)
}
