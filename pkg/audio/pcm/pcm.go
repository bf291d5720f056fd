package pcm

import (
	"errors"
	"fmt"
	"time"
)

// Depth is the bit depth of every format in this package.
const Depth = 16

var (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K = Format{SampleRate: 16000, Channels: 1}
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K = Format{SampleRate: 24000, Channels: 1}
)

// ErrInvalidFormat is returned by Format.Validate.
var ErrInvalidFormat = errors.New("pcm: invalid format")

// Format describes 16-bit little-endian PCM audio.
type Format struct {
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`
	Channels   int `json:"channels" yaml:"channels"`
}

// Validate reports whether the format has a positive rate and channel count.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("%w: rate=%d channels=%d", ErrInvalidFormat, f.SampleRate, f.Channels)
	}
	return nil
}

// FrameSize returns the number of bytes per sample frame (all channels).
func (f Format) FrameSize() int {
	return f.Channels * Depth / 8
}

// Samples returns the number of sample frames in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes / int64(f.FrameSize())
}

// SamplesInDuration returns the number of sample frames in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate) * d / time.Second)
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate)
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate * f.FrameSize()
}

// MIMEType returns the content type used by streaming speech backends,
// e.g. "audio/pcm;rate=16000".
func (f Format) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.SampleRate, f.Channels)
}

// FloatChunk is an immutable block of mono float32 samples in [-1, 1].
//
// The zero value is an empty chunk with no sample rate. Callers must not
// modify the slice returned by Samples.
type FloatChunk struct {
	samples []float32
	rate    int
}

// NewFloatChunk copies samples into a new chunk. It panics if rate is not
// positive.
func NewFloatChunk(samples []float32, rate int) FloatChunk {
	if rate <= 0 {
		panic("pcm: non-positive sample rate")
	}
	return FloatChunk{samples: append([]float32(nil), samples...), rate: rate}
}

// WrapFloatChunk builds a chunk that takes ownership of samples without
// copying. The caller must not write to samples afterwards.
func WrapFloatChunk(samples []float32, rate int) FloatChunk {
	if rate <= 0 {
		panic("pcm: non-positive sample rate")
	}
	return FloatChunk{samples: samples, rate: rate}
}

// Samples returns the chunk samples. The slice must be treated as read-only.
func (c FloatChunk) Samples() []float32 { return c.samples }

// SampleRate returns the sample rate in Hz.
func (c FloatChunk) SampleRate() int { return c.rate }

// Len returns the number of samples.
func (c FloatChunk) Len() int { return len(c.samples) }

// Duration returns len/rate.
func (c FloatChunk) Duration() time.Duration {
	if c.rate == 0 {
		return 0
	}
	return time.Duration(len(c.samples)) * time.Second / time.Duration(c.rate)
}

// Format returns the mono format matching the chunk rate.
func (c FloatChunk) Format() Format {
	return Format{SampleRate: c.rate, Channels: 1}
}
