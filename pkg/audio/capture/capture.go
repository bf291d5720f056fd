// Package capture turns a microphone into a stream of float PCM chunks.
//
// A Source opens an input Device on Start, reads fixed-size blocks on its own
// goroutine, converts them to mono float32 at the target rate and delivers
// them on a channel until Stop. Delivery never blocks the device loop: if the
// consumer falls behind, the newest block is dropped and counted.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
	"github.com/stylehub-project/news-sub000/pkg/audio/resampler"
)

var (
	// ErrPermissionDenied is returned when the host refuses microphone access.
	ErrPermissionDenied = errors.New("capture: microphone permission denied")

	// ErrDeviceUnavailable is returned when no input device can be opened or
	// the device fails while running.
	ErrDeviceUnavailable = errors.New("capture: input device unavailable")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("capture: already started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("capture: stopped")
)

// Default capture parameters.
const (
	DefaultSampleRate = 16000
	DefaultBlockSize  = 4096
)

// Device is an opened input device. Read blocks until buf holds interleaved
// samples and returns the number of samples read. Close must unblock a
// pending Read.
type Device interface {
	Read(buf []int16) (int, error)
	Close() error
}

// Opener acquires an input device delivering the given format in buffers of
// the given number of frames.
type Opener interface {
	Open(ctx context.Context, format pcm.Format, frames int) (Device, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, format pcm.Format, frames int) (Device, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, format pcm.Format, frames int) (Device, error) {
	return f(ctx, format, frames)
}

// Option configures a Source.
type Option func(*Source)

// WithSampleRate sets the rate of emitted chunks.
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.rate = rate }
}

// WithBlockSize sets the number of samples per emitted chunk.
func WithBlockSize(n int) Option {
	return func(s *Source) { s.blockSize = n }
}

// WithDeviceFormat opens the device at its native rate and channel count.
// Frames are downmixed and resampled to the target rate.
func WithDeviceFormat(f pcm.Format) Option {
	return func(s *Source) { s.device = f }
}

// WithQueue sets the capacity of the chunk channel. The default is 4.
func WithQueue(n int) Option {
	return func(s *Source) { s.queue = n }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// Source is a single-use microphone stream.
type Source struct {
	opener    Opener
	rate      int
	blockSize int
	device    pcm.Format
	queue     int
	logger    *slog.Logger

	enabled atomic.Bool
	dropped atomic.Int64

	mu       sync.Mutex
	started  bool
	stopping bool
	dev      Device
	done     chan struct{}
	err      error
	stopCtx  func() bool
}

// New creates a Source reading from devices produced by opener.
func New(opener Opener, opts ...Option) *Source {
	s := &Source{
		opener:    opener,
		rate:      DefaultSampleRate,
		blockSize: DefaultBlockSize,
		queue:     4,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.device.SampleRate == 0 {
		s.device.SampleRate = s.rate
	}
	if s.device.Channels == 0 {
		s.device.Channels = 1
	}
	s.enabled.Store(true)
	return s
}

// Start opens the device and begins streaming. The returned channel is
// closed after Stop, after ctx is done, or when the device fails; in the
// last case Err reports the failure.
func (s *Source) Start(ctx context.Context) (<-chan pcm.FloatChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, ErrAlreadyStarted
	}
	if s.stopping {
		return nil, ErrStopped
	}
	s.started = true

	rs, err := resampler.New(s.device.SampleRate, s.rate)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	frames := s.blockSize * s.device.SampleRate / s.rate
	dev, err := s.opener.Open(ctx, s.device, frames)
	if err != nil {
		rs.Close()
		s.stopping = true
		return nil, fmt.Errorf("capture: open device: %w", classify(err))
	}
	s.dev = dev
	s.done = make(chan struct{})

	out := make(chan pcm.FloatChunk, s.queue)
	go s.loop(dev, rs, frames, out)
	s.stopCtx = context.AfterFunc(ctx, s.Stop)

	s.logger.Debug("capture started",
		"rate", s.rate, "block", s.blockSize,
		"device_rate", s.device.SampleRate, "device_channels", s.device.Channels)
	return out, nil
}

func classify(err error) error {
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
}

func (s *Source) loop(dev Device, rs *resampler.Resampler, frames int, out chan<- pcm.FloatChunk) {
	defer close(s.done)
	defer close(out)
	defer rs.Close()

	raw := make([]int16, frames*s.device.Channels)
	var floats []float32
	pending := make([]float32, 0, s.blockSize*2)

	for {
		n, err := dev.Read(raw)
		if err != nil {
			s.mu.Lock()
			if !s.stopping {
				s.err = fmt.Errorf("capture: read: %w", classify(err))
				s.logger.Warn("capture device failed", "error", err)
			}
			s.mu.Unlock()
			return
		}
		if !s.enabled.Load() {
			pending = pending[:0]
			continue
		}

		floats = pcm.Int16ToFloat(floats, raw[:n])
		mono := resampler.Downmix(floats, s.device.Channels)
		if !rs.Passthrough() {
			if mono, err = rs.Process(mono); err != nil {
				s.logger.Warn("capture resample failed", "error", err)
				continue
			}
		}
		pending = append(pending, mono...)

		for len(pending) >= s.blockSize {
			chunk := pcm.NewFloatChunk(pending[:s.blockSize], s.rate)
			pending = append(pending[:0], pending[s.blockSize:]...)
			select {
			case out <- chunk:
			default:
				s.dropped.Add(1)
			}
		}
	}
}

// SetEnabled pauses or resumes delivery. The device keeps running while
// disabled and its blocks are discarded.
func (s *Source) SetEnabled(on bool) {
	s.enabled.Store(on)
}

// Enabled reports whether blocks are being delivered.
func (s *Source) Enabled() bool {
	return s.enabled.Load()
}

// Dropped returns the number of blocks dropped because the consumer lagged.
func (s *Source) Dropped() int64 {
	return s.dropped.Load()
}

// Stop releases the device and waits for the stream to end. It is safe to
// call at any time and more than once.
func (s *Source) Stop() {
	s.mu.Lock()
	if s.stopping || s.dev == nil {
		s.stopping = true
		done := s.done
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	s.stopping = true
	dev, done, stopCtx := s.dev, s.done, s.stopCtx
	s.mu.Unlock()

	if stopCtx != nil {
		stopCtx()
	}
	if err := dev.Close(); err != nil {
		s.logger.Debug("capture device close", "error", err)
	}
	<-done
	s.logger.Debug("capture stopped", "dropped", s.dropped.Load())
}

// Err returns the device failure that ended the stream, or nil if it ended
// because of Stop.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
