package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
)

func ramp(n int, base float32) pcm.FloatChunk {
	s := make([]float32, n)
	for i := range s {
		s[i] = base + float32(i)/1000
	}
	return pcm.NewFloatChunk(s, 1000)
}

func TestRendererBackToBack(t *testing.T) {
	r := NewRenderer(nil, RendererConfig{SampleRate: 1000, FrameSize: 4})
	s := NewScheduler(r, r)
	s.Reset()

	if _, err := s.Enqueue(ramp(6, 0.1)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Enqueue(ramp(3, 0.5)); err != nil {
		t.Fatal(err)
	}

	var got []float32
	var finished int
	frame := make([]float32, 4)
	for range 3 {
		for _, done := range r.mix(frame) {
			done()
			finished++
		}
		got = append(got, frame...)
	}

	want := []float32{0.1, 0.101, 0.102, 0.103, 0.104, 0.105, 0.5, 0.501, 0.502, 0, 0, 0}
	for i := range want {
		if d := got[i] - want[i]; d > 1e-6 || d < -1e-6 {
			t.Fatalf("sample %d = %v, want %v (all %v)", i, got[i], want[i], got)
		}
	}
	if finished != 2 {
		t.Errorf("finished = %d, want 2", finished)
	}
	if s.Speaking() {
		t.Error("scheduler still speaking")
	}
	if r.Now() != 12*time.Millisecond {
		t.Errorf("Now = %v, want 12ms", r.Now())
	}
}

func TestRendererRejectsRate(t *testing.T) {
	r := NewRenderer(nil, RendererConfig{SampleRate: 24000})
	_, err := r.Schedule(pcm.NewFloatChunk([]float32{0}, 16000), 0, func() {})
	if !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("err = %v, want ErrFormatMismatch", err)
	}
}

func TestRendererCancel(t *testing.T) {
	r := NewRenderer(nil, RendererConfig{SampleRate: 1000, FrameSize: 4})
	var wg sync.WaitGroup
	wg.Add(2)
	r.Schedule(ramp(10, 0), 0, wg.Done)
	r.Schedule(ramp(10, 0), 10*time.Millisecond, wg.Done)
	r.Cancel()
	wg.Wait()

	frame := make([]float32, 4)
	if done := r.mix(frame); len(done) != 0 {
		t.Error("cancelled entries still rendered")
	}
	for _, v := range frame {
		if v != 0 {
			t.Fatalf("frame = %v, want silence", frame)
		}
	}
}

type countingOutput struct {
	mu   sync.Mutex
	n    int
	fail error
}

func (o *countingOutput) Write(s []int16) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return 0, o.fail
	}
	o.n += len(s)
	return len(s), nil
}

func TestRendererRun(t *testing.T) {
	out := &countingOutput{}
	r := NewRenderer(out, RendererConfig{SampleRate: 1000, FrameSize: 10, AnalyserSize: 32})
	s := NewScheduler(r, r)

	finished := make(chan struct{})
	s.Reset()
	r.Schedule(pcm.NewFloatChunk([]float32{0.5, 0.5, 0.5}, 1000), r.Now(), func() { close(finished) })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("chunk never finished")
	}
	window := make([]float32, 32)
	if n := r.Analyser().Latest(window); n == 0 {
		t.Error("analyser is empty")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Run = %v", err)
	}
	if _, err := r.Schedule(ramp(1, 0), r.Now(), func() {}); err == nil {
		t.Error("Schedule after Run returned should fail")
	}
}

func TestRendererOutputFailure(t *testing.T) {
	out := &countingOutput{fail: errors.New("unplugged")}
	r := NewRenderer(out, RendererConfig{SampleRate: 1000, FrameSize: 10})
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected output error")
	}
}

func TestRendererGain(t *testing.T) {
	out := &countingOutput{}
	r := NewRenderer(out, RendererConfig{SampleRate: 1000, FrameSize: 4, AnalyserSize: 4})
	r.SetGain(0.5)
	r.Schedule(pcm.NewFloatChunk([]float32{1, 1, 1, 1}, 1000), 0, func() {})

	ctx, cancel := context.WithCancel(context.Background())
	out.mu.Lock()
	go func() {
		r.Run(ctx)
	}()
	// The first frame is mixed and tapped before the blocked Write returns.
	deadline := time.Now().Add(2 * time.Second)
	for r.Analyser().Len() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	got := r.Analyser().Bytes()
	out.mu.Unlock()
	cancel()
	if len(got) != 4 || got[0] != 0.5 {
		t.Errorf("tap = %v, want gain applied", got)
	}
}

func TestPendingDuration(t *testing.T) {
	r := NewRenderer(nil, RendererConfig{SampleRate: 1000, FrameSize: 4})
	r.Schedule(ramp(100, 0), 0, func() {})
	if got := r.PendingDuration(); got != 100*time.Millisecond {
		t.Errorf("PendingDuration = %v, want 100ms", got)
	}
}

func TestRendererLateStartKeepsHead(t *testing.T) {
	r := NewRenderer(nil, RendererConfig{SampleRate: 1000, FrameSize: 4})
	frame := make([]float32, 4)
	r.mix(frame)

	at, err := r.Schedule(pcm.NewFloatChunk([]float32{1, 2, 3, 4, 5, 6}, 1000), 2*time.Millisecond, func() {})
	if err != nil {
		t.Fatal(err)
	}
	if at != 4*time.Millisecond {
		t.Errorf("start = %v, want 4ms", at)
	}
	r.mix(frame)
	if frame[0] != 1 || frame[3] != 4 {
		t.Errorf("frame = %v, want the chunk from its first sample", frame)
	}
	r.mix(frame)
	if frame[0] != 5 || frame[1] != 6 || frame[2] != 0 {
		t.Errorf("tail frame = %v", frame)
	}
}
