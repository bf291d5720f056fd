package portaudio

import (
	"io"
	"sync"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
)

// InputStream captures audio from the default input device.
type InputStream struct {
	stream *Stream
	format pcm.Format
	frames int
	mu     sync.Mutex
	closed bool
}

// NewInputStream opens and starts the default input device.
// format: PCM format (e.g., pcm.L16Mono16K)
// frames: frames per device buffer (e.g., 4096)
func NewInputStream(format pcm.Format, frames int) (*InputStream, error) {
	stream, err := openStream(format.Channels, 0, float64(format.SampleRate), frames)
	if err != nil {
		return nil, err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}

	return &InputStream{
		stream: stream,
		format: format,
		frames: frames,
	}, nil
}

// Read blocks until buf is filled with interleaved samples, reading at most
// one device buffer. Returns the number of samples read (not frames).
func (is *InputStream) Read(buf []int16) (int, error) {
	is.mu.Lock()
	defer is.mu.Unlock()

	if is.closed {
		return 0, io.EOF
	}

	n := min(len(buf), is.frames*is.format.Channels)
	n -= n % is.format.Channels
	if err := is.stream.read(buf[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// Format returns the PCM format.
func (is *InputStream) Format() pcm.Format {
	return is.format
}

// Close stops and closes the stream.
func (is *InputStream) Close() error {
	is.mu.Lock()
	defer is.mu.Unlock()

	if is.closed {
		return nil
	}
	is.closed = true

	return is.stream.Close()
}

// OutputStream plays audio to the default output device.
type OutputStream struct {
	stream *Stream
	format pcm.Format
	frames int
	mu     sync.Mutex
	closed bool
}

// NewOutputStream opens and starts the default output device.
// format: PCM format (e.g., pcm.L16Mono24K)
// frames: frames per device buffer (e.g., 480 for 20ms at 24kHz)
func NewOutputStream(format pcm.Format, frames int) (*OutputStream, error) {
	stream, err := openStream(0, format.Channels, float64(format.SampleRate), frames)
	if err != nil {
		return nil, err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}

	return &OutputStream{
		stream: stream,
		format: format,
		frames: frames,
	}, nil
}

// Write plays interleaved samples, blocking until the device accepted them.
// Returns the number of samples written.
func (os *OutputStream) Write(samples []int16) (int, error) {
	os.mu.Lock()
	defer os.mu.Unlock()

	if os.closed {
		return 0, ErrClosed
	}

	step := os.frames * os.format.Channels
	written := 0
	for written < len(samples) {
		end := min(written+step, len(samples))
		if err := os.stream.write(samples[written:end]); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// Format returns the PCM format.
func (os *OutputStream) Format() pcm.Format {
	return os.format
}

// Close stops and closes the stream.
func (os *OutputStream) Close() error {
	os.mu.Lock()
	defer os.mu.Unlock()

	if os.closed {
		return nil
	}
	os.closed = true

	return os.stream.Close()
}
