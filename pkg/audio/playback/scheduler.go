// Package playback schedules decoded audio chunks back to back on an output
// timeline.
//
// The Scheduler owns a cursor: the time at which the next chunk should start.
// Each Enqueue starts the chunk at max(cursor, now) and advances the cursor by
// the chunk duration, so chunks never overlap and play gaplessly while the
// backend keeps up. When the backend falls behind, playback resumes at "now"
// and the gap is counted as an underrun.
//
// The Renderer is the default Clock and Sink: it mixes scheduled chunks into
// fixed-size frames written to an Output device and keeps the most recent
// output in an analyser ring for visualization.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
)

// Clock reports the output timeline position.
type Clock interface {
	Now() time.Duration
}

// Sink plays chunks at absolute positions of its Clock.
//
// Schedule returns the position the chunk will actually start at, which is
// later than at when the clock passed at in the meantime. It must call done
// exactly once, when the chunk finished playing or was cancelled. done must
// not be called synchronously from Schedule or Cancel.
type Sink interface {
	Schedule(chunk pcm.FloatChunk, at time.Duration, done func()) (time.Duration, error)
	Cancel()
}

// Slot describes where a chunk was placed on the timeline.
type Slot struct {
	Start    time.Duration
	Duration time.Duration
	Underrun bool
}

// End returns Start + Duration.
func (s Slot) End() time.Duration { return s.Start + s.Duration }

// cursor is the next start position on the output clock.
type cursor struct {
	next time.Duration
}

// place returns the start for a chunk of length d and advances the cursor.
func (c *cursor) place(now, d time.Duration) (start time.Duration, late bool) {
	start = c.next
	if now > start {
		start, late = now, true
	}
	c.next = start + d
	return start, late
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSpeakingHandler sets a function called on every speaking transition.
// It runs with the scheduler locked and must not call back into it.
func WithSpeakingHandler(fn func(speaking bool)) Option {
	return func(s *Scheduler) { s.onSpeaking = fn }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler places chunks gaplessly on a Sink.
type Scheduler struct {
	clock      Clock
	sink       Sink
	onSpeaking func(bool)
	logger     *slog.Logger

	mu        sync.Mutex
	cur       cursor
	primed    bool
	gen       uint64
	active    int
	speaking  bool
	underruns int64
	scheduled int64
}

// NewScheduler creates a Scheduler. Call Reset before the first Enqueue of a
// session.
func NewScheduler(clock Clock, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  clock,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cur.next = clock.Now()
	return s
}

// Reset moves the cursor to the current clock position. Chunks already
// scheduled keep playing.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.next = s.clock.Now()
	s.primed = false
}

// Enqueue schedules chunk at max(cursor, now) and advances the cursor by its
// duration. Empty chunks are ignored and return a zero-length slot at the
// cursor.
func (s *Scheduler) Enqueue(chunk pcm.FloatChunk) (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := chunk.Duration()
	if d == 0 {
		return Slot{Start: s.cur.next}, nil
	}

	now := s.clock.Now()
	prev := s.cur
	start, late := s.cur.place(now, d)

	gen := s.gen
	at, err := s.sink.Schedule(chunk, start, func() { s.finished(gen) })
	if err != nil {
		s.cur = prev
		return Slot{}, fmt.Errorf("playback: schedule: %w", err)
	}
	if at > start {
		// The clock advanced between Now and Schedule.
		start, late = at, true
		s.cur.next = at + d
		now = at
	}
	underrun := late && s.primed && s.active == 0

	s.primed = true
	s.scheduled++
	if underrun {
		s.underruns++
		s.logger.Debug("playback underrun", "gap", now-prev.next)
	}
	s.active++
	s.setSpeaking(true)
	return Slot{Start: start, Duration: d, Underrun: underrun}, nil
}

func (s *Scheduler) finished(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.active == 0 {
		return
	}
	s.active--
	if s.active == 0 {
		s.setSpeaking(false)
	}
}

func (s *Scheduler) setSpeaking(on bool) {
	if s.speaking == on {
		return
	}
	s.speaking = on
	if s.onSpeaking != nil {
		s.onSpeaking(on)
	}
}

// Interrupt cancels every chunk that has not finished playing and moves the
// cursor to now. Used when the listener barges in.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	if s.active > 0 {
		s.logger.Debug("playback interrupted", "pending", s.active)
	}
	s.gen++
	s.active = 0
	s.cur.next = s.clock.Now()
	s.primed = false
	s.setSpeaking(false)
	s.sink.Cancel()
	s.mu.Unlock()
}

// Speaking reports whether any scheduled chunk is still playing.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Next returns the cursor position.
func (s *Scheduler) Next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.next
}

// Stats holds scheduler counters.
type Stats struct {
	Scheduled int64
	Underruns int64
	Active    int
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Scheduled: s.scheduled, Underruns: s.underruns, Active: s.active}
}
