package voicelive

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
)

type recvItem struct {
	ev  Event
	err error
}

// fakeConn delivers pushed events and records sent audio. When gate is set,
// Send blocks until the gate is closed.
type fakeConn struct {
	events chan recvItem
	sent   chan []byte
	gate   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan recvItem, 16),
		sent:   make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Send(ctx context.Context, data []byte) error {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-c.closed:
			return io.ErrClosedPipe
		}
	}
	select {
	case c.sent <- data:
	default:
	}
	return nil
}

func (c *fakeConn) Recv() (Event, error) {
	select {
	case it := <-c.events:
		return it.ev, it.err
	case <-c.closed:
		return Event{}, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(ev Event) { c.events <- recvItem{ev: ev} }

func (c *fakeConn) fail(err error) { c.events <- recvItem{err: err} }

func connTransport(c *fakeConn) Transport {
	return TransportFunc(func(context.Context, Config) (Conn, error) { return c, nil })
}

// recorder collects session callbacks.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	chunks []pcm.FloatChunk
	texts  []string
	err    error

	opened chan struct{}
	ended  chan struct{}
	step   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		opened: make(chan struct{}),
		ended:  make(chan struct{}),
		step:   make(chan struct{}, 64),
	}
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	r.step <- struct{}{}
}

func (r *recorder) funcs() SessionFuncs {
	return SessionFuncs{
		Open: func() {
			r.add("open")
			close(r.opened)
		},
		AudioChunk: func(c pcm.FloatChunk) {
			r.mu.Lock()
			r.chunks = append(r.chunks, c)
			r.mu.Unlock()
			r.add("audio")
		},
		Transcript: func(sp Speaker, text string, final bool) {
			r.mu.Lock()
			r.texts = append(r.texts, string(sp)+":"+text)
			r.mu.Unlock()
			r.add("transcript")
		},
		TurnComplete: func() { r.add("turn") },
		Interrupted:  func() { r.add("interrupted") },
		Close: func() {
			r.add("close")
			close(r.ended)
		},
		Error: func(err error) {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			r.add("error")
			close(r.ended)
		},
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func wait(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

// waitSteps waits for n more callbacks.
func (r *recorder) waitSteps(t *testing.T, n int) {
	t.Helper()
	for range n {
		wait(t, r.step, "callback")
	}
}

func pcmBytes(samples ...float32) []byte {
	return pcm.FloatToPCM16(samples)
}

func TestSessionLifecycle(t *testing.T) {
	conn := newFakeConn()
	rec := newRecorder()
	s := NewSession(connTransport(conn), Config{}, rec.funcs())

	if s.State() != StateIdle {
		t.Fatalf("state = %v, want Idle", s.State())
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	if err := s.Connect(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Connect error = %v", err)
	}
	wait(t, rec.opened, "open")
	rec.waitSteps(t, 1)
	if s.State() != StateOpen {
		t.Errorf("state = %v, want Open", s.State())
	}

	conn.push(Event{Type: EventAudio, Audio: pcmBytes(0.5, -0.5)})
	conn.push(Event{Type: EventAudio, Audio: pcmBytes(0.25)})
	conn.push(Event{Type: EventTranscript, Speaker: Assistant, Text: "Good morning"})
	rec.waitSteps(t, 3)
	if s.State() != StateStreaming {
		t.Errorf("state = %v, want Streaming", s.State())
	}

	conn.push(Event{Type: EventTurnComplete})
	rec.waitSteps(t, 1)
	if s.State() != StateOpen {
		t.Errorf("state after turn = %v, want Open", s.State())
	}

	s.Close()
	wait(t, rec.ended, "close")
	wait(t, s.Done(), "done")
	if s.State() != StateClosed {
		t.Errorf("state = %v, want Closed", s.State())
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v", s.Err())
	}

	want := []string{"open", "audio", "audio", "transcript", "turn", "close"}
	if got := rec.snapshot(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if len(rec.chunks) != 2 || rec.chunks[0].Len() != 2 || rec.chunks[1].Len() != 1 {
		t.Fatalf("chunks = %v", rec.chunks)
	}
	if c := rec.chunks[0]; c.SampleRate() != 24000 || c.Samples()[0] != 0.5 {
		t.Errorf("first chunk = %v @ %d", c.Samples(), c.SampleRate())
	}
	if st := s.Stats(); st.Received != 2 {
		t.Errorf("Received = %d", st.Received)
	}

	s.Close()
	if got := rec.snapshot(); len(got) != len(want) {
		t.Errorf("Close after Closed fired callbacks: %v", got)
	}
}

func TestSessionDecodeFailure(t *testing.T) {
	conn := newFakeConn()
	rec := newRecorder()
	s := NewSession(connTransport(conn), Config{}, rec.funcs())
	s.Connect(context.Background())
	wait(t, rec.opened, "open")
	rec.waitSteps(t, 1)

	conn.push(Event{Type: EventAudio, Audio: []byte{1, 2, 3}})
	conn.push(Event{Type: EventAudio, Audio: pcmBytes(0.1)})
	rec.waitSteps(t, 1)

	if st := s.Stats(); st.DecodeFailures != 1 || st.Received != 1 {
		t.Errorf("stats = %+v", st)
	}
	if !s.State().Active() {
		t.Errorf("state = %v, want active", s.State())
	}
	s.Close()
	wait(t, rec.ended, "close")
	if rec.err != nil {
		t.Errorf("decode failure surfaced: %v", rec.err)
	}
}

func TestSessionBackpressure(t *testing.T) {
	tests := []struct {
		queue int
	}{{0}, {2}}
	for _, tt := range tests {
		conn := newFakeConn()
		conn.gate = make(chan struct{})
		rec := newRecorder()
		s := NewSession(connTransport(conn), Config{SendQueue: tt.queue}, rec.funcs())
		s.Connect(context.Background())
		wait(t, rec.opened, "open")

		const n = 20
		chunk := pcm.NewFloatChunk(make([]float32, 160), 16000)
		start := time.Now()
		for range n {
			s.SendAudio(chunk)
		}
		if d := time.Since(start); d > time.Second {
			t.Errorf("queue=%d: SendAudio blocked for %v", tt.queue, d)
		}

		st := s.Stats()
		if st.Sent+st.Dropped != n {
			t.Errorf("queue=%d: sent %d + dropped %d != %d", tt.queue, st.Sent, st.Dropped, n)
		}
		// One chunk may be held by the writer, the rest wait in the queue.
		if st.Sent > int64(tt.queue+1) {
			t.Errorf("queue=%d: sent = %d, want <= %d", tt.queue, st.Sent, tt.queue+1)
		}

		close(conn.gate)
		s.Close()
		wait(t, rec.ended, "close")
	}
}

func TestSessionSendFilters(t *testing.T) {
	conn := newFakeConn()
	rec := newRecorder()
	s := NewSession(connTransport(conn), Config{SendQueue: 4}, rec.funcs())

	s.SendAudio(pcm.NewFloatChunk([]float32{0.1}, 16000))
	if st := s.Stats(); st.Sent != 0 || st.Dropped != 0 {
		t.Errorf("send before open counted: %+v", st)
	}

	s.Connect(context.Background())
	wait(t, rec.opened, "open")

	s.SendAudio(pcm.NewFloatChunk([]float32{0.1}, 8000))
	if st := s.Stats(); st.Dropped != 1 {
		t.Errorf("rate mismatch not dropped: %+v", st)
	}

	s.SendAudio(pcm.NewFloatChunk([]float32{0.5}, 16000))
	select {
	case data := <-conn.sent:
		if got, _ := pcm.PCM16ToMono(data); len(got) != 1 || got[0] != 0.5 {
			t.Errorf("sent = %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audio not sent")
	}
	s.Close()
	wait(t, rec.ended, "close")
}

func TestSessionRemoteClose(t *testing.T) {
	conn := newFakeConn()
	rec := newRecorder()
	s := NewSession(connTransport(conn), Config{}, rec.funcs())
	s.Connect(context.Background())
	wait(t, rec.opened, "open")

	conn.fail(io.EOF)
	wait(t, rec.ended, "error")
	if !errors.Is(rec.err, ErrTransportClosed) {
		t.Errorf("error = %v, want ErrTransportClosed", rec.err)
	}
	if s.State() != StateFailed {
		t.Errorf("state = %v, want Failed", s.State())
	}
	if !errors.Is(s.Err(), ErrTransportClosed) {
		t.Errorf("Err() = %v", s.Err())
	}
}

func TestSessionReceiveQuota(t *testing.T) {
	conn := newFakeConn()
	rec := newRecorder()
	s := NewSession(connTransport(conn), Config{}, rec.funcs())
	s.Connect(context.Background())
	wait(t, rec.opened, "open")

	conn.fail(newError(QuotaExceeded, "", errors.New("resource exhausted")))
	wait(t, rec.ended, "error")
	if !errors.Is(rec.err, ErrQuotaExceeded) {
		t.Errorf("error = %v, want ErrQuotaExceeded", rec.err)
	}
	if got := rec.snapshot(); !slices.Equal(got, []string{"open", "error"}) {
		t.Errorf("calls = %v", got)
	}
}

func TestSessionConnectFailures(t *testing.T) {
	blocking := TransportFunc(func(ctx context.Context, _ Config) (Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	rejecting := TransportFunc(func(context.Context, Config) (Conn, error) {
		return nil, newError(AuthRejected, "", errors.New("invalid api key"))
	})
	refusing := TransportFunc(func(context.Context, Config) (Conn, error) {
		return nil, errors.New("connection refused")
	})

	tests := []struct {
		name      string
		transport Transport
		want      error
	}{
		{"timeout", blocking, ErrConnectionFailed},
		{"auth", rejecting, ErrAuthRejected},
		{"refused", refusing, ErrConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder()
			s := NewSession(tt.transport, Config{ConnectTimeout: 50 * time.Millisecond}, rec.funcs())
			if err := s.Connect(context.Background()); err != nil {
				t.Fatalf("Connect error: %v", err)
			}
			wait(t, rec.ended, "error")
			if !errors.Is(rec.err, tt.want) {
				t.Errorf("error = %v, want %v", rec.err, tt.want)
			}
			if s.State() != StateFailed {
				t.Errorf("state = %v", s.State())
			}
			if got := rec.snapshot(); !slices.Equal(got, []string{"error"}) {
				t.Errorf("calls = %v", got)
			}
		})
	}
}

func TestSessionCloseWhileConnecting(t *testing.T) {
	dialing := make(chan struct{})
	tr := TransportFunc(func(ctx context.Context, _ Config) (Conn, error) {
		close(dialing)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	rec := newRecorder()
	s := NewSession(tr, Config{}, rec.funcs())
	s.Connect(context.Background())
	wait(t, dialing, "dial")

	s.Close()
	wait(t, rec.ended, "close")
	if got := rec.snapshot(); !slices.Equal(got, []string{"close"}) {
		t.Errorf("calls = %v, want [close]", got)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v", s.State())
	}
}

func TestSessionCloseIdle(t *testing.T) {
	rec := newRecorder()
	s := NewSession(connTransport(newFakeConn()), Config{}, rec.funcs())
	s.Close()
	wait(t, s.Done(), "done")
	if got := rec.snapshot(); !slices.Equal(got, []string{"close"}) {
		t.Errorf("calls = %v", got)
	}
	if err := s.Connect(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Connect after Close = %v", err)
	}
}

func TestSessionNoCallbacksAfterClose(t *testing.T) {
	conn := newFakeConn()
	rec := newRecorder()
	var s *Session
	funcs := rec.funcs()
	audio := funcs.AudioChunk
	funcs.AudioChunk = func(c pcm.FloatChunk) {
		audio(c)
		s.Close()
	}
	s = NewSession(connTransport(conn), Config{}, funcs)
	s.Connect(context.Background())
	wait(t, rec.opened, "open")

	for range 3 {
		conn.push(Event{Type: EventAudio, Audio: pcmBytes(0.1)})
	}
	conn.push(Event{Type: EventTranscript, Speaker: Assistant, Text: "late"})
	wait(t, rec.ended, "close")
	wait(t, s.Done(), "done")

	want := []string{"open", "audio", "close"}
	if got := rec.snapshot(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestSessionAbort(t *testing.T) {
	conn := newFakeConn()
	rec := newRecorder()
	s := NewSession(connTransport(conn), Config{}, rec.funcs())
	s.Connect(context.Background())
	wait(t, rec.opened, "open")

	s.Abort(newError(DeviceUnavailable, "capture", errors.New("unplugged")))
	wait(t, rec.ended, "error")
	if !errors.Is(rec.err, ErrDeviceUnavailable) {
		t.Errorf("error = %v", rec.err)
	}
	select {
	case <-conn.closed:
	default:
		t.Error("conn not closed")
	}
}
