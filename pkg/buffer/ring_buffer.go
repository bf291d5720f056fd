package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned by Next when the buffer is closed and drained.
var ErrIteratorDone = errors.New("iterator done")

// RingBuffer is a thread-safe ring buffer that implements io.Reader and io.Writer
// style access for any element type. It overwrites the oldest data when the
// buffer is full, making it suitable for maintaining a sliding window of the
// most recent data.
//
// Reads consume elements and block while the buffer is empty. Latest and
// Bytes copy without consuming.
type RingBuffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// RingN creates a new RingBuffer with the specified size.
// The buffer will overwrite the oldest data when this capacity is exceeded.
func RingN[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("buffer: non-positive ring size")
	}
	return &RingBuffer[T]{
		writeNotify: make(chan struct{}, 1),

		buf: make([]T, size),
	}
}

// Cap returns the buffer capacity.
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.buf)
}

// Read reads data from the buffer into the provided slice.
// It blocks until data is available or the buffer is closed.
// Returns the number of elements read and any error encountered.
func (rb *RingBuffer[T]) Read(p []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if err := rb.waitLocked(); err != nil {
		return 0, err
	}
	n := rb.copyLocked(p, rb.head, min(len(p), int(rb.tail-rb.head)))
	rb.head += int64(n)
	return n, nil
}

// Next reads and returns the next element from the buffer.
// It blocks until an element is available or the buffer is closed.
// Returns ErrIteratorDone when the buffer is closed and empty.
func (rb *RingBuffer[T]) Next() (t T, err error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if err = rb.waitLocked(); err != nil {
		if errors.Is(err, io.EOF) {
			err = ErrIteratorDone
		}
		return
	}
	t = rb.buf[rb.head%int64(len(rb.buf))]
	rb.head++
	return t, nil
}

// waitLocked blocks until data is available. Must hold rb.mu.
func (rb *RingBuffer[T]) waitLocked() error {
	for {
		if rb.closeErr != nil {
			return fmt.Errorf("buffer: read from closed buffer: %w", rb.closeErr)
		}
		if rb.head != rb.tail {
			return nil
		}
		if rb.closeWrite {
			return io.EOF
		}
		rb.mu.Unlock()
		<-rb.writeNotify
		rb.mu.Lock()
	}
}

// copyLocked copies n elements starting at absolute position from into dst.
func (rb *RingBuffer[T]) copyLocked(dst []T, from int64, n int) int {
	size := len(rb.buf)
	start := int(from % int64(size))
	c := copy(dst[:n], rb.buf[start:min(start+n, size)])
	if c < n {
		c += copy(dst[c:n], rb.buf[:n-c])
	}
	return c
}

// Write appends p to the buffer. It never blocks: when the buffer is full
// the oldest elements are overwritten. If p is longer than the buffer only
// its tail is kept.
func (rb *RingBuffer[T]) Write(p []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if err := rb.writableLocked(); err != nil {
		return 0, err
	}

	size := len(rb.buf)
	src := p
	if len(src) > size {
		src = src[len(src)-size:]
	}
	tail := int((rb.tail + int64(len(p)-len(src))) % int64(size))
	c := copy(rb.buf[tail:], src)
	copy(rb.buf, src[c:])

	rb.tail += int64(len(p))
	if rb.tail-rb.head > int64(size) {
		rb.head = rb.tail - int64(size)
	}
	rb.notify()
	return len(p), nil
}

// Add adds a single element directly to the buffer.
// If the buffer is full, it will overwrite the oldest element and advance
// the head pointer to maintain the ring buffer behavior.
func (rb *RingBuffer[T]) Add(t T) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if err := rb.writableLocked(); err != nil {
		return err
	}
	rb.buf[rb.tail%int64(len(rb.buf))] = t
	rb.tail++
	if rb.tail-rb.head > int64(len(rb.buf)) {
		rb.head++
	}
	rb.notify()
	return nil
}

func (rb *RingBuffer[T]) writableLocked() error {
	if rb.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", rb.closeErr)
	}
	if rb.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	return nil
}

func (rb *RingBuffer[T]) notify() {
	select {
	case rb.writeNotify <- struct{}{}:
	default:
	}
}

// Latest copies the most recent min(len(dst), Len()) elements into the end
// of dst, oldest first, without consuming them. Elements of dst before the
// copied range are left untouched. It returns the number copied.
func (rb *RingBuffer[T]) Latest(dst []T) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := min(len(dst), int(rb.tail-rb.head))
	return rb.copyLocked(dst[len(dst)-n:], rb.tail-int64(n), n)
}

// Bytes returns a copy of all elements currently in the buffer, oldest first.
func (rb *RingBuffer[T]) Bytes() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := int(rb.tail - rb.head)
	out := make([]T, n)
	rb.copyLocked(out, rb.head, n)
	return out
}

// Len returns the number of elements currently in the buffer.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.tail - rb.head)
}

// Reset clears the buffer by resetting the head and tail pointers.
// This effectively discards all buffered data.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head = 0
	rb.tail = 0
}

// CloseWrite closes the write side of the buffer, preventing further writes.
// Reads will continue to work until the buffer is empty, then return EOF.
func (rb *RingBuffer[T]) CloseWrite() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeWrite {
		return nil
	}
	rb.closeWrite = true
	close(rb.writeNotify)
	return nil
}

// CloseWithError closes the buffer with the specified error.
// All pending operations are unblocked and return this error.
func (rb *RingBuffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return nil
	}
	rb.closeErr = err
	if !rb.closeWrite {
		rb.closeWrite = true
		close(rb.writeNotify)
	}
	return nil
}

// Close closes the buffer, preventing further writes and reads.
// Equivalent to CloseWithError(io.ErrClosedPipe).
func (rb *RingBuffer[T]) Close() error {
	return rb.CloseWithError(io.ErrClosedPipe)
}
