package voicelive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
)

// SessionHandler receives session callbacks. All callbacks run on the
// session goroutine in backend order, one at a time. Exactly one of OnClose
// and OnError is called, last.
type SessionHandler interface {
	OnOpen()
	OnAudioChunk(chunk pcm.FloatChunk)
	OnTranscript(speaker Speaker, text string, final bool)
	OnTurnComplete()
	OnInterrupted()
	OnClose()
	OnError(err error)
}

// SessionFuncs adapts functions to SessionHandler. Nil fields are ignored.
type SessionFuncs struct {
	Open         func()
	AudioChunk   func(pcm.FloatChunk)
	Transcript   func(Speaker, string, bool)
	TurnComplete func()
	Interrupted  func()
	Close        func()
	Error        func(error)
}

func (f SessionFuncs) OnOpen() {
	if f.Open != nil {
		f.Open()
	}
}

func (f SessionFuncs) OnAudioChunk(c pcm.FloatChunk) {
	if f.AudioChunk != nil {
		f.AudioChunk(c)
	}
}

func (f SessionFuncs) OnTranscript(sp Speaker, text string, final bool) {
	if f.Transcript != nil {
		f.Transcript(sp, text, final)
	}
}

func (f SessionFuncs) OnTurnComplete() {
	if f.TurnComplete != nil {
		f.TurnComplete()
	}
}

func (f SessionFuncs) OnInterrupted() {
	if f.Interrupted != nil {
		f.Interrupted()
	}
}

func (f SessionFuncs) OnClose() {
	if f.Close != nil {
		f.Close()
	}
}

func (f SessionFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records session activity on m.
func WithMetrics(m *Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// SessionStats counts audio handled by a session.
type SessionStats struct {
	Sent           int64 `json:"sent" msgpack:"sent"`
	Dropped        int64 `json:"dropped" msgpack:"dropped"`
	Received       int64 `json:"received" msgpack:"received"`
	DecodeFailures int64 `json:"decode_failures" msgpack:"decode_failures"`
}

// Session is one connection to a conversational backend.
//
// States move Idle → Connecting → Open ⇄ Streaming → Closing → Closed, and
// Failed is reachable from every non-terminal state. Failures are never
// retried; a new Session is needed to reconnect.
type Session struct {
	id        string
	transport Transport
	cfg       Config
	h         SessionHandler
	logger    *slog.Logger
	metrics   *Metrics

	sent, dropped, received, decodeErrs atomic.Int64

	sendCh chan []byte
	stop   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	err      *Error
	conn     Conn
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewSession creates an idle Session. cfg is completed with defaults.
func NewSession(t Transport, cfg Config, h SessionHandler, opts ...SessionOption) *Session {
	if h == nil {
		h = SessionFuncs{}
	}
	cfg = cfg.withDefaults()
	s := &Session{
		id:        uuid.NewString(),
		transport: t,
		cfg:       cfg,
		h:         h,
		logger:    slog.Default(),
		sendCh:    make(chan []byte, cfg.SendQueue),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Config returns the effective configuration.
func (s *Session) Config() Config { return s.cfg }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that ended the session, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// Done is closed after the terminal callback returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stats returns audio counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Sent:           s.sent.Load(),
		Dropped:        s.dropped.Load(),
		Received:       s.received.Load(),
		DecodeFailures: s.decodeErrs.Load(),
	}
}

// Connect starts dialing and returns immediately. The outcome is reported
// by OnOpen or OnError. The dial is bounded by Config.ConnectTimeout and by
// ctx; after the session is open, ctx no longer affects it.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: connect in state %s", ErrAlreadyStarted, s.state)
	}
	s.state = StateConnecting
	s.metrics.sessionStarted()

	dialCtx, cancelDial := context.WithCancel(ctx)
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = func() {
		cancelDial()
		cancelRun()
	}
	go s.run(dialCtx, runCtx)
	return nil
}

func (s *Session) run(dialCtx, runCtx context.Context) {
	defer close(s.done)
	started := time.Now()
	s.logger.Debug("voice session connecting",
		"provider", s.cfg.Provider, "model", s.cfg.Model, "timeout", s.cfg.ConnectTimeout)

	ctx, cancel := context.WithTimeout(dialCtx, s.cfg.ConnectTimeout)
	conn, err := s.transport.Dial(ctx, s.cfg)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = newError(ConnectionFailed, "connect",
			fmt.Errorf("no handshake within %s: %w", s.cfg.ConnectTimeout, err))
	}
	cancel()
	if err != nil {
		s.fail(classify("connect", err, ConnectionFailed))
		s.finish(started)
		return
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		s.finish(started)
		return
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()

	s.metrics.connected(time.Since(started))
	s.logger.Info("voice session open", "elapsed", time.Since(started).Round(time.Millisecond))

	s.wg.Add(1)
	go s.writeLoop(runCtx, conn)

	s.deliver(s.h.OnOpen)
	s.readLoop(conn)

	conn.Close()
	s.mu.Lock()
	s.haltLocked()
	s.mu.Unlock()
	s.wg.Wait()
	s.finish(started)
}

func (s *Session) readLoop(conn Conn) {
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		ev, err := conn.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = newError(TransportClosed, "receive", errors.New("closed by backend"))
			}
			s.fail(classify("receive", err, TransportClosed))
			return
		}
		s.handle(ev)
	}
}

func (s *Session) handle(ev Event) {
	switch ev.Type {
	case EventAudio:
		samples, err := pcm.PCM16ToMono(ev.Audio)
		if err != nil {
			s.decodeErrs.Add(1)
			s.metrics.decodeFailed()
			s.logger.Warn("voice session dropped output chunk",
				"error", newError(DecodeFailed, "decode", err), "bytes", len(ev.Audio))
			return
		}
		if len(samples) == 0 {
			return
		}
		chunk := pcm.WrapFloatChunk(samples, s.cfg.OutputSampleRate)
		s.transition(StateOpen, StateStreaming)
		s.received.Add(1)
		s.metrics.chunkReceived()
		s.deliver(func() { s.h.OnAudioChunk(chunk) })

	case EventTranscript:
		s.deliver(func() { s.h.OnTranscript(ev.Speaker, ev.Text, ev.Final) })

	case EventTurnComplete:
		s.transition(StateStreaming, StateOpen)
		s.deliver(s.h.OnTurnComplete)

	case EventInterrupted:
		s.transition(StateStreaming, StateOpen)
		s.deliver(s.h.OnInterrupted)

	default:
		s.logger.Debug("voice session ignored event", "type", ev.Type)
	}
}

func (s *Session) transition(from, to State) {
	s.mu.Lock()
	if s.state == from {
		s.state = to
	}
	s.mu.Unlock()
}

// deliver runs fn unless the session stopped accepting callbacks.
func (s *Session) deliver(fn func()) {
	s.mu.Lock()
	ok := s.state.Active()
	s.mu.Unlock()
	if ok {
		fn()
	}
}

func (s *Session) writeLoop(ctx context.Context, conn Conn) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case data := <-s.sendCh:
			if err := conn.Send(ctx, data); err != nil {
				s.fail(classify("send", err, TransportClosed))
				return
			}
		}
	}
}

// SendAudio encodes chunk and hands it to the transport without blocking.
// It is a no-op unless the session is Open or Streaming. When the transport
// is busy the chunk is dropped and counted.
func (s *Session) SendAudio(chunk pcm.FloatChunk) {
	if chunk.Len() == 0 {
		return
	}
	s.mu.Lock()
	active := s.state.Active()
	s.mu.Unlock()
	if !active {
		return
	}
	if chunk.SampleRate() != s.cfg.InputSampleRate {
		s.dropped.Add(1)
		s.metrics.chunkDropped()
		s.logger.Debug("voice session dropped input chunk",
			"rate", chunk.SampleRate(), "want", s.cfg.InputSampleRate)
		return
	}

	data := pcm.FloatToPCM16(chunk.Samples())
	select {
	case s.sendCh <- data:
		s.sent.Add(1)
		s.metrics.chunkSent()
	default:
		s.dropped.Add(1)
		s.metrics.chunkDropped()
	}
}

// Close shuts the session down gracefully. It is idempotent and safe to
// call from callbacks. No chunk or transcript callback starts after Close
// returns; OnClose follows on the session goroutine. Use Done to wait for
// it.
func (s *Session) Close() {
	s.mu.Lock()
	switch {
	case s.state == StateIdle:
		s.state = StateClosed
		s.haltLocked()
		s.mu.Unlock()
		s.h.OnClose()
		close(s.done)
		return
	case s.state.Terminal() || s.state == StateClosing:
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	conn := s.haltLocked()
	s.mu.Unlock()

	s.logger.Debug("voice session closing")
	if conn != nil {
		conn.Close()
	}
}

// Abort ends the session with err, classified as KindUnknown unless it
// already is an *Error. OnError follows on the session goroutine.
func (s *Session) Abort(err error) {
	e := classify("abort", err, KindUnknown)
	s.mu.Lock()
	if s.state == StateIdle {
		s.state = StateFailed
		s.err = e
		s.haltLocked()
		s.mu.Unlock()
		s.h.OnError(e)
		close(s.done)
		return
	}
	s.mu.Unlock()
	s.fail(e)
}

// fail moves the session to Failed unless it is already ending.
func (s *Session) fail(err *Error) {
	s.mu.Lock()
	if s.state.Terminal() || s.state == StateClosing {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.err = err
	conn := s.haltLocked()
	s.mu.Unlock()

	s.logger.Warn("voice session failed", "error", err)
	if conn != nil {
		conn.Close()
	}
}

func (s *Session) haltLocked() Conn {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.cancel != nil {
		s.cancel()
	}
	return s.conn
}

// finish fires the terminal callback.
func (s *Session) finish(started time.Time) {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.state = StateClosed
	}
	state, err := s.state, s.err
	s.mu.Unlock()

	stats := s.Stats()
	if state == StateFailed {
		s.metrics.sessionEnded(err.Kind.String(), time.Since(started))
		s.h.OnError(err)
		return
	}
	s.metrics.sessionEnded("closed", time.Since(started))
	s.logger.Info("voice session closed",
		"sent", stats.Sent, "dropped", stats.Dropped,
		"received", stats.Received, "decode_failures", stats.DecodeFailures)
	s.h.OnClose()
}
