package playback

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

type scheduled struct {
	at   time.Duration
	d    time.Duration
	done func()
}

type fakeSink struct {
	mu        sync.Mutex
	slots     []scheduled
	cancelled int
	fail      error
	// floor is the earliest start the sink accepts.
	floor time.Duration
}

func (s *fakeSink) Schedule(c pcm.FloatChunk, at time.Duration, done func()) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	at = max(at, s.floor)
	s.slots = append(s.slots, scheduled{at: at, d: c.Duration(), done: done})
	return at, nil
}

func (s *fakeSink) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled++
}

func (s *fakeSink) finish(i int) {
	s.mu.Lock()
	done := s.slots[i].done
	s.mu.Unlock()
	done()
}

func chunkOf(d time.Duration) pcm.FloatChunk {
	const rate = 24000
	return pcm.WrapFloatChunk(make([]float32, int(d*rate/time.Second)), rate)
}

func TestSchedulerGapless(t *testing.T) {
	clock := &fakeClock{now: time.Second}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	s.Reset()

	var want time.Duration = time.Second
	for range 10 {
		slot, err := s.Enqueue(chunkOf(100 * time.Millisecond))
		if err != nil {
			t.Fatalf("Enqueue error: %v", err)
		}
		if slot.Start != want {
			t.Fatalf("start = %v, want %v", slot.Start, want)
		}
		if slot.Underrun {
			t.Fatal("unexpected underrun")
		}
		want = slot.End()
	}
	if s.Next() != 2*time.Second {
		t.Errorf("Next = %v, want 2s", s.Next())
	}
}

func TestSchedulerNoOverlap(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	s.Reset()

	var prev Slot
	for i := range 200 {
		clock.Advance(time.Duration(r.IntN(300)) * time.Millisecond)
		d := time.Duration(10+r.IntN(200)) * time.Millisecond
		slot, err := s.Enqueue(chunkOf(d))
		if err != nil {
			t.Fatalf("Enqueue error: %v", err)
		}
		if slot.Start < clock.Now() {
			t.Fatalf("chunk %d starts in the past: %v < %v", i, slot.Start, clock.Now())
		}
		if i > 0 && slot.Start < prev.End() {
			t.Fatalf("chunk %d overlaps: start %v < previous end %v", i, slot.Start, prev.End())
		}
		prev = slot
	}
}

func TestSchedulerUnderrun(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	s.Reset()

	first, _ := s.Enqueue(chunkOf(100 * time.Millisecond))
	if first.Underrun {
		t.Error("first chunk after reset is not an underrun")
	}
	sink.finish(0)

	clock.Advance(250 * time.Millisecond)
	slot, _ := s.Enqueue(chunkOf(100 * time.Millisecond))
	if !slot.Underrun {
		t.Error("expected underrun after the queue drained")
	}
	if slot.Start != 250*time.Millisecond {
		t.Errorf("start = %v, want now", slot.Start)
	}
	if got := s.Stats().Underruns; got != 1 {
		t.Errorf("Underruns = %d, want 1", got)
	}
}

func TestSchedulerSpeaking(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	var transitions []bool
	s := NewScheduler(clock, sink, WithSpeakingHandler(func(on bool) {
		transitions = append(transitions, on)
	}))
	s.Reset()

	s.Enqueue(chunkOf(50 * time.Millisecond))
	s.Enqueue(chunkOf(50 * time.Millisecond))
	if !s.Speaking() {
		t.Fatal("should be speaking")
	}
	sink.finish(0)
	if !s.Speaking() {
		t.Fatal("should still be speaking with one chunk left")
	}
	sink.finish(1)
	if s.Speaking() {
		t.Fatal("should stop speaking")
	}
	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Errorf("transitions = %v, want [true false]", transitions)
	}
}

func TestSchedulerInterrupt(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	s.Reset()

	for range 5 {
		s.Enqueue(chunkOf(100 * time.Millisecond))
	}
	clock.Advance(120 * time.Millisecond)
	s.Interrupt()

	if s.Speaking() {
		t.Error("speaking after interrupt")
	}
	if sink.cancelled != 1 {
		t.Errorf("sink cancelled %d times", sink.cancelled)
	}
	if s.Next() != 120*time.Millisecond {
		t.Errorf("Next = %v, want now", s.Next())
	}
	// Stale completions must not disturb the new generation.
	slot, _ := s.Enqueue(chunkOf(100 * time.Millisecond))
	sink.finish(0)
	sink.finish(1)
	if !s.Speaking() {
		t.Error("stale done callbacks ended the new chunk")
	}
	if slot.Underrun {
		t.Error("first chunk after interrupt is not an underrun")
	}
}

func TestSchedulerSinkError(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{fail: errors.New("closed")}
	s := NewScheduler(clock, sink)
	s.Reset()
	if _, err := s.Enqueue(chunkOf(100 * time.Millisecond)); err == nil {
		t.Fatal("expected error")
	}
	if s.Next() != 0 {
		t.Errorf("cursor advanced on failure: %v", s.Next())
	}
	if s.Speaking() {
		t.Error("speaking after failed enqueue")
	}
}

func TestSchedulerEmptyChunk(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	slot, err := s.Enqueue(pcm.FloatChunk{})
	if err != nil || slot.Duration != 0 {
		t.Errorf("slot = %+v, err = %v", slot, err)
	}
	if len(sink.slots) != 0 {
		t.Error("empty chunk reached the sink")
	}
}

func TestSchedulerFollowsSinkStart(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink)
	s.Reset()

	// The renderer mixed a frame after Now was read.
	sink.floor = 20 * time.Millisecond
	slot, err := s.Enqueue(chunkOf(100 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if slot.Start != 20*time.Millisecond {
		t.Errorf("start = %v, want 20ms", slot.Start)
	}
	if s.Next() != 120*time.Millisecond {
		t.Errorf("Next = %v, want 120ms", s.Next())
	}
	next, _ := s.Enqueue(chunkOf(50 * time.Millisecond))
	if next.Start != slot.End() {
		t.Errorf("second start = %v, want %v", next.Start, slot.End())
	}
}
