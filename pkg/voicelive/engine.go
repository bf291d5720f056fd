package voicelive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/stylehub-project/news-sub000/pkg/audio/capture"
	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
	"github.com/stylehub-project/news-sub000/pkg/audio/playback"
	"github.com/stylehub-project/news-sub000/pkg/audio/spectrum"
	"github.com/stylehub-project/news-sub000/pkg/storage"
)

// Host receives engine events. OnAudioLevel runs on the visualizer
// goroutine and OnSpeakingChanged on the playback goroutine; the other
// methods run on the session goroutine. Exactly one of OnClose and OnError
// is called, last, after every device was released.
type Host interface {
	OnOpen()
	OnAudioLevel(volume float64, bars []float64)
	OnTranscript(turns []Turn)
	OnSpeakingChanged(speaking bool)
	OnError(err error)
	OnClose()
}

// HostFuncs adapts functions to Host. Nil fields are ignored.
type HostFuncs struct {
	Open            func()
	AudioLevel      func(volume float64, bars []float64)
	Transcript      func(turns []Turn)
	SpeakingChanged func(speaking bool)
	Error           func(err error)
	Close           func()
}

func (f HostFuncs) OnOpen() {
	if f.Open != nil {
		f.Open()
	}
}

func (f HostFuncs) OnAudioLevel(volume float64, bars []float64) {
	if f.AudioLevel != nil {
		f.AudioLevel(volume, bars)
	}
}

func (f HostFuncs) OnTranscript(turns []Turn) {
	if f.Transcript != nil {
		f.Transcript(turns)
	}
}

func (f HostFuncs) OnSpeakingChanged(speaking bool) {
	if f.SpeakingChanged != nil {
		f.SpeakingChanged(speaking)
	}
}

func (f HostFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f HostFuncs) OnClose() {
	if f.Close != nil {
		f.Close()
	}
}

// OutputDevice is an opened speaker.
type OutputDevice interface {
	playback.Output
	Close() error
}

// OutputOpener acquires a mono speaker at the given format, writing frames
// samples per buffer.
type OutputOpener interface {
	Open(ctx context.Context, format pcm.Format, frames int) (OutputDevice, error)
}

// OutputOpenerFunc adapts a function to OutputOpener.
type OutputOpenerFunc func(ctx context.Context, format pcm.Format, frames int) (OutputDevice, error)

// Open implements OutputOpener.
func (f OutputOpenerFunc) Open(ctx context.Context, format pcm.Format, frames int) (OutputDevice, error) {
	return f(ctx, format, frames)
}

type pacedDevice struct{ *playback.PacedOutput }

func (pacedDevice) Close() error { return nil }

// PacedOutput opens a device that discards audio at real-time speed, for
// hosts without a speaker.
func PacedOutput() OutputOpener {
	return OutputOpenerFunc(func(_ context.Context, f pcm.Format, _ int) (OutputDevice, error) {
		return pacedDevice{playback.NewPacedOutput(f.SampleRate)}, nil
	})
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Session Config `json:"session" yaml:"session"`

	// CaptureBlockSize is the number of samples per microphone chunk.
	CaptureBlockSize int `json:"capture_block_size,omitzero" yaml:"capture_block_size,omitempty"`
	// CaptureDeviceRate opens the microphone at its native rate; chunks are
	// resampled to Session.InputSampleRate. Zero uses the input rate.
	CaptureDeviceRate int `json:"capture_device_rate,omitzero" yaml:"capture_device_rate,omitempty"`

	// PlaybackFrame is the duration rendered per speaker write.
	PlaybackFrame time.Duration `json:"playback_frame,omitzero" yaml:"playback_frame,omitempty"`

	VisualizerBars     int           `json:"visualizer_bars,omitzero" yaml:"visualizer_bars,omitempty"`
	VisualizerInterval time.Duration `json:"visualizer_interval,omitzero" yaml:"visualizer_interval,omitempty"`
}

func (c EngineConfig) withDefaults() EngineConfig {
	c.Session = c.Session.withDefaults()
	if c.CaptureBlockSize <= 0 {
		c.CaptureBlockSize = capture.DefaultBlockSize
	}
	if c.CaptureDeviceRate <= 0 {
		c.CaptureDeviceRate = c.Session.InputSampleRate
	}
	if c.PlaybackFrame <= 0 {
		c.PlaybackFrame = 20 * time.Millisecond
	}
	if c.VisualizerBars <= 0 {
		c.VisualizerBars = spectrum.DefaultBars
	}
	if c.VisualizerInterval <= 0 {
		c.VisualizerInterval = spectrum.DefaultInterval
	}
	return c
}

// Validate checks the session config and the engine's own settings.
func (c EngineConfig) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return err
	}
	switch {
	case c.CaptureBlockSize < 0:
		return fmt.Errorf("voicelive: negative capture block size")
	case c.CaptureDeviceRate < 0:
		return fmt.Errorf("voicelive: negative capture device rate")
	case c.PlaybackFrame < 0 || c.VisualizerInterval < 0:
		return fmt.Errorf("voicelive: negative interval")
	case c.VisualizerBars < 0:
		return fmt.Errorf("voicelive: negative visualizer bars")
	}
	return nil
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithInput sets the microphone. Without one the engine only listens.
func WithInput(o capture.Opener) EngineOption {
	return func(e *Engine) { e.input = o }
}

// WithOutput sets the speaker. The default is PacedOutput.
func WithOutput(o OutputOpener) EngineOption {
	return func(e *Engine) { e.output = o }
}

// WithHost sets the host callbacks.
func WithHost(h Host) EngineOption {
	return func(e *Engine) { e.host = h }
}

// WithEngineLogger sets the logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithEngineMetrics records session and device activity on m.
func WithEngineMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithArchive saves a Record of the session when it ends.
func WithArchive(a *Archive) EngineOption {
	return func(e *Engine) { e.archive = a }
}

// WithRecordingStore exports the recorded output to store under dir when
// the session ends. Empty sessions write nothing.
func WithRecordingStore(store storage.FileStore, dir string) EngineOption {
	return func(e *Engine) {
		e.store = store
		e.storeDir = dir
	}
}

// Engine runs one voice conversation: it captures the microphone, streams
// it to the backend, schedules the reply on the speaker and keeps the
// transcript and a recording of the reply.
type Engine struct {
	cfg     EngineConfig
	input   capture.Opener
	output  OutputOpener
	host    Host
	logger  *slog.Logger
	metrics *Metrics

	archive  *Archive
	store    storage.FileStore
	storeDir string

	session    *Session
	transcript *Transcript
	recording  *Recording

	mu        sync.Mutex
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc
	source    *capture.Source
	device    OutputDevice
	scheduler *playback.Scheduler
	record    *Record

	wg   sync.WaitGroup
	done chan struct{}
}

// NewEngine creates an idle Engine connecting through t.
func NewEngine(t Transport, cfg EngineConfig, opts ...EngineOption) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:        cfg,
		output:     PacedOutput(),
		host:       HostFuncs{},
		logger:     slog.Default(),
		transcript: NewTranscript(),
		recording:  NewRecording(cfg.Session.OutputSampleRate),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.session = NewSession(t, cfg.Session, SessionFuncs{
		Open:         e.onOpen,
		AudioChunk:   e.onAudioChunk,
		Transcript:   e.onTranscript,
		TurnComplete: e.onTurnComplete,
		Interrupted:  e.onInterrupted,
		Close:        func() { e.finish(nil) },
		Error:        e.finish,
	}, WithLogger(e.logger), WithMetrics(e.metrics))
	e.logger = e.logger.With("session", e.session.ID())
	return e
}

// ID returns the session ID.
func (e *Engine) ID() string { return e.session.ID() }

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// State returns the session state.
func (e *Engine) State() State { return e.session.State() }

// Err returns the failure that ended the session, or nil.
func (e *Engine) Err() error { return e.session.Err() }

// Done is closed after the host received OnClose or OnError.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Transcript returns the finalized turns followed by the open ones.
func (e *Engine) Transcript() []Turn { return e.transcript.Snapshot() }

// Stats returns the session audio counters.
func (e *Engine) Stats() SessionStats { return e.session.Stats() }

// Start acquires the speaker and the microphone and connects. Device
// failures are returned and also reported to the host through OnError;
// devices acquired before the failure are released. Connection failures
// are only reported through OnError.
func (e *Engine) Start(ctx context.Context) (err error) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("%w: engine", ErrAlreadyStarted)
	}
	e.started = true
	e.startedAt = time.Now()
	e.mu.Unlock()
	if st := e.session.State(); st != StateIdle {
		return fmt.Errorf("%w: start in state %s", ErrInvalidState, st)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var release []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(release) - 1; i >= 0; i-- {
			release[i]()
		}
		cancel()
		e.session.Abort(err)
	}()

	format := pcm.Format{SampleRate: e.cfg.Session.OutputSampleRate, Channels: 1}
	frame := int(format.SamplesInDuration(e.cfg.PlaybackFrame))
	device, err := e.output.Open(ctx, format, frame)
	if err != nil {
		return classifyDevice("open output", err)
	}
	release = append(release, func() { device.Close() })

	var (
		source *capture.Source
		blocks <-chan pcm.FloatChunk
	)
	if e.input != nil {
		source = capture.New(e.input,
			capture.WithSampleRate(e.cfg.Session.InputSampleRate),
			capture.WithBlockSize(e.cfg.CaptureBlockSize),
			capture.WithDeviceFormat(pcm.Format{SampleRate: e.cfg.CaptureDeviceRate, Channels: 1}),
			capture.WithLogger(e.logger),
		)
		if blocks, err = source.Start(runCtx); err != nil {
			return classifyDevice("open input", err)
		}
		release = append(release, source.Stop)
	}

	renderer := playback.NewRenderer(device, playback.RendererConfig{
		SampleRate: format.SampleRate,
		FrameSize:  frame,
		Logger:     e.logger,
	})
	scheduler := playback.NewScheduler(renderer, renderer,
		playback.WithSpeakingHandler(e.host.OnSpeakingChanged),
		playback.WithLogger(e.logger),
	)
	sampler := spectrum.NewSampler(renderer.Analyser(),
		spectrum.WithBars(e.cfg.VisualizerBars),
		spectrum.WithInterval(e.cfg.VisualizerInterval),
	)

	e.mu.Lock()
	e.cancel = cancel
	e.source = source
	e.device = device
	e.scheduler = scheduler
	e.mu.Unlock()

	if err = e.session.Connect(ctx); err != nil {
		// The deferred release owns the devices again.
		e.mu.Lock()
		e.cancel, e.source, e.device, e.scheduler = nil, nil, nil, nil
		e.mu.Unlock()
		return err
	}

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		if err := renderer.Run(runCtx); err != nil {
			e.session.Abort(newError(DeviceUnavailable, "playback", err))
		}
	}()
	go func() {
		defer e.wg.Done()
		sampler.Run(runCtx, func(l spectrum.Level) {
			e.host.OnAudioLevel(l.Volume, l.Bars)
		})
	}()
	if blocks != nil {
		e.wg.Add(1)
		go e.pump(source, blocks)
	}
	return nil
}

// pump forwards microphone chunks to the session until the stream ends.
func (e *Engine) pump(source *capture.Source, blocks <-chan pcm.FloatChunk) {
	defer e.wg.Done()
	for chunk := range blocks {
		e.session.SendAudio(chunk)
	}
	if err := source.Err(); err != nil {
		e.session.Abort(classifyDevice("capture", err))
	}
}

func classifyDevice(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, capture.ErrPermissionDenied) {
		return newError(PermissionDenied, op, err)
	}
	return newError(DeviceUnavailable, op, err)
}

// SetMicrophoneEnabled mutes or unmutes the microphone. It fails unless the
// session is Open or Streaming.
func (e *Engine) SetMicrophoneEnabled(on bool) error {
	if st := e.session.State(); !st.Active() {
		return fmt.Errorf("%w: microphone toggle in state %s", ErrInvalidState, st)
	}
	e.mu.Lock()
	source := e.source
	e.mu.Unlock()
	if source == nil {
		return fmt.Errorf("%w: no microphone", ErrInvalidState)
	}
	source.SetEnabled(on)
	e.logger.Debug("microphone toggled", "enabled", on)
	return nil
}

// MicrophoneEnabled reports whether microphone audio is being sent.
func (e *Engine) MicrophoneEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source != nil && e.source.Enabled()
}

// Close ends the conversation. It does not wait; use Done.
func (e *Engine) Close() { e.session.Close() }

func (e *Engine) onOpen() {
	e.mu.Lock()
	scheduler := e.scheduler
	e.mu.Unlock()
	if scheduler != nil {
		scheduler.Reset()
	}
	e.host.OnOpen()
}

func (e *Engine) onAudioChunk(chunk pcm.FloatChunk) {
	if err := e.recording.Append(chunk); err != nil {
		e.logger.Warn("recording append failed", "error", err)
	}
	e.mu.Lock()
	scheduler := e.scheduler
	e.mu.Unlock()
	if scheduler == nil {
		return
	}
	if _, err := scheduler.Enqueue(chunk); err != nil {
		e.logger.Warn("playback enqueue failed", "error", err)
	}
}

func (e *Engine) onTranscript(speaker Speaker, text string, final bool) {
	e.transcript.Fragment(speaker, text, final)
	e.host.OnTranscript(e.transcript.Snapshot())
}

func (e *Engine) onTurnComplete() {
	e.transcript.Complete(User)
	e.transcript.Complete(Assistant)
	e.host.OnTranscript(e.transcript.Snapshot())
}

func (e *Engine) onInterrupted() {
	e.mu.Lock()
	scheduler := e.scheduler
	e.mu.Unlock()
	if scheduler != nil {
		scheduler.Interrupt()
	}
	e.transcript.Complete(Assistant)
	e.host.OnTranscript(e.transcript.Snapshot())
}

// finish releases the devices, seals and persists the session and notifies
// the host. It runs once, on the session goroutine.
func (e *Engine) finish(err error) {
	e.mu.Lock()
	cancel, source, device, scheduler := e.cancel, e.source, e.device, e.scheduler
	startedAt := e.startedAt
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if source != nil {
		source.Stop()
	}
	e.wg.Wait()
	if device != nil {
		if cerr := device.Close(); cerr != nil {
			e.logger.Debug("output device close", "error", cerr)
		}
	}

	e.recording.Seal()
	e.transcript.CompleteAll()

	rec := &Record{
		ID:            e.session.ID(),
		StartedAt:     startedAt,
		EndedAt:       time.Now(),
		Provider:      e.cfg.Session.Provider,
		Model:         e.cfg.Session.Model,
		VoiceProfile:  e.cfg.Session.VoiceProfile,
		State:         e.session.State().String(),
		Turns:         e.transcript.Turns(),
		OutputSeconds: e.recording.Duration().Seconds(),
		Stats:         e.session.Stats(),
	}
	if startedAt.IsZero() {
		rec.StartedAt = rec.EndedAt
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if source != nil {
		rec.CaptureDropped = source.Dropped()
		e.metrics.addCaptureDropped(rec.CaptureDropped)
	}
	if scheduler != nil {
		rec.Underruns = scheduler.Stats().Underruns
		e.metrics.addUnderruns(rec.Underruns)
	}
	e.persist(rec)

	e.mu.Lock()
	e.record = rec
	e.mu.Unlock()

	if len(rec.Turns) > 0 {
		e.host.OnTranscript(rec.Turns)
	}
	if err != nil {
		e.host.OnError(err)
	} else {
		e.host.OnClose()
	}
	close(e.done)
}

func (e *Engine) persist(rec *Record) {
	if e.store == nil && e.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if e.store != nil && e.recording.Len() > 0 {
		p := path.Join(e.storeDir, rec.ID+".wav")
		if err := e.ExportTo(ctx, e.store, p); err != nil {
			e.logger.Warn("recording export failed", "path", p, "error", err)
		} else {
			rec.Recording = p
		}
	}
	if e.archive != nil {
		if err := e.archive.Save(ctx, rec); err != nil {
			e.logger.Warn("session archive failed", "error", err)
		}
	}
}

// Export returns the recorded assistant audio as a WAV file. It fails with
// EmptySession when no audio was received.
func (e *Engine) Export() ([]byte, error) {
	return e.recording.Export()
}

// ExportTo writes the WAV export to store at p. Nothing is written when the
// session is empty or the write fails.
func (e *Engine) ExportTo(ctx context.Context, store storage.FileStore, p string) error {
	data, err := e.recording.Export()
	if err != nil {
		return err
	}
	if err := storage.WriteFile(ctx, store, p, data); err != nil {
		return fmt.Errorf("voicelive: export %s: %w", p, err)
	}
	return nil
}

// Record returns the archived summary, or nil before the session ended.
func (e *Engine) Record() *Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record
}
