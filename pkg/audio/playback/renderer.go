package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
	"github.com/stylehub-project/news-sub000/pkg/buffer"
)

// ErrFormatMismatch is returned when a chunk rate differs from the renderer.
var ErrFormatMismatch = errors.New("playback: chunk sample rate mismatch")

// Output is a blocking mono PCM16 device, e.g. portaudio.OutputStream.
type Output interface {
	Write(samples []int16) (int, error)
}

// RendererConfig configures a Renderer.
type RendererConfig struct {
	// SampleRate of the output device. Defaults to 24000.
	SampleRate int
	// FrameSize is the number of samples mixed per device write. Defaults
	// to 20ms worth.
	FrameSize int
	// AnalyserSize is the number of recent output samples kept for
	// visualization. Defaults to 2048.
	AnalyserSize int
	Logger       *slog.Logger
}

type entry struct {
	samples []float32
	start   int64
	done    func()
}

func (e *entry) end() int64 { return e.start + int64(len(e.samples)) }

// Renderer mixes scheduled chunks into an Output. Its clock counts samples
// handed to the output, so positions are exact regardless of wall time.
type Renderer struct {
	rate   int
	frame  int
	out    Output
	tap    *buffer.RingBuffer[float32]
	gain   pcm.Gain
	logger *slog.Logger

	mu      sync.Mutex
	pos     int64
	entries []*entry
	closed  bool
}

// NewRenderer creates a Renderer writing to out.
func NewRenderer(out Output, cfg RendererConfig) *Renderer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = cfg.SampleRate / 50
	}
	if cfg.AnalyserSize <= 0 {
		cfg.AnalyserSize = 2048
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		rate:   cfg.SampleRate,
		frame:  cfg.FrameSize,
		out:    out,
		tap:    buffer.RingN[float32](cfg.AnalyserSize),
		logger: cfg.Logger,
	}
}

// SampleRate returns the output rate.
func (r *Renderer) SampleRate() int { return r.rate }

// Analyser returns the ring of recently rendered samples.
func (r *Renderer) Analyser() *buffer.RingBuffer[float32] { return r.tap }

// SetGain scales all output. 1 is unity.
func (r *Renderer) SetGain(g float32) { r.gain.Store(g) }

// Now returns the position of the next sample to be mixed.
func (r *Renderer) Now() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.toDuration(r.pos)
}

func (r *Renderer) toDuration(samples int64) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(r.rate)
}

func (r *Renderer) toSamples(d time.Duration) int64 {
	return int64((d*time.Duration(r.rate) + time.Second/2) / time.Second)
}

// Schedule implements Sink. A start the clock has already passed moves to
// the current position; no samples are dropped.
func (r *Renderer) Schedule(chunk pcm.FloatChunk, at time.Duration, done func()) (time.Duration, error) {
	if chunk.SampleRate() != r.rate {
		return 0, fmt.Errorf("%w: %d != %d", ErrFormatMismatch, chunk.SampleRate(), r.rate)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, errors.New("playback: renderer closed")
	}
	e := &entry{samples: chunk.Samples(), start: r.toSamples(at), done: done}
	if e.start < r.pos {
		e.start = r.pos
		at = r.toDuration(r.pos)
	}
	i, _ := slices.BinarySearchFunc(r.entries, e.start, func(a *entry, s int64) int {
		switch {
		case a.start < s:
			return -1
		case a.start > s:
			return 1
		}
		return 0
	})
	r.entries = slices.Insert(r.entries, i, e)
	return at, nil
}

// Cancel implements Sink.
func (r *Renderer) Cancel() {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()
	if len(entries) == 0 {
		return
	}
	go func() {
		for _, e := range entries {
			e.done()
		}
	}()
}

// mix renders the next frame into dst and advances the clock. It returns
// the callbacks of entries that ended within the frame.
func (r *Renderer) mix(dst []float32) (finished []func()) {
	clear(dst)
	r.mu.Lock()
	defer r.mu.Unlock()

	from, to := r.pos, r.pos+int64(len(dst))
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.start < to {
			lo := max(e.start, from)
			hi := min(e.end(), to)
			for p := lo; p < hi; p++ {
				dst[p-from] += e.samples[p-e.start]
			}
		}
		if e.end() <= to {
			finished = append(finished, e.done)
			continue
		}
		kept = append(kept, e)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	r.pos = to
	return finished
}

// Run renders frames until ctx is done or the output fails. Silence is
// rendered while nothing is scheduled, which keeps the clock advancing. On
// return all unfinished chunks are cancelled and later Schedule calls fail.
func (r *Renderer) Run(ctx context.Context) error {
	frame := make([]float32, r.frame)
	samples := make([]int16, r.frame)
	for {
		if err := ctx.Err(); err != nil {
			r.close()
			return nil
		}
		finished := r.mix(frame)
		r.gain.Apply(frame)
		r.tap.Write(frame)
		if _, err := r.out.Write(pcm.FloatToInt16(samples, frame)); err != nil {
			r.logger.Warn("playback output failed", "error", err)
			r.close()
			return fmt.Errorf("playback: write output: %w", err)
		}
		for _, done := range finished {
			done()
		}
	}
}

func (r *Renderer) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.Cancel()
}

// PendingDuration returns how much scheduled audio has not been mixed yet.
func (r *Renderer) PendingDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var end int64
	for _, e := range r.entries {
		end = max(end, e.end())
	}
	if end <= r.pos {
		return 0
	}
	return r.toDuration(end - r.pos)
}
