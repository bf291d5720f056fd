package voicelive

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
	"github.com/stylehub-project/news-sub000/pkg/audio/resampler"
	openairealtime "github.com/stylehub-project/news-sub000/pkg/openai-realtime"
)

var _ Transport = (*OpenAITransport)(nil)

// codeCancelNotActive answers a cancel that raced the end of a response.
const codeCancelNotActive = "response_cancel_not_active"

// OpenAITransport connects sessions to the OpenAI Realtime API. Audio is
// exchanged as 24kHz PCM16 and resampled to the configured rates.
type OpenAITransport struct {
	Client *openairealtime.Client
	Logger *slog.Logger
}

// NewOpenAITransport creates a transport using apiKey.
func NewOpenAITransport(apiKey string, opts ...openairealtime.Option) *OpenAITransport {
	return &OpenAITransport{Client: openairealtime.NewClient(apiKey, opts...)}
}

func (t *OpenAITransport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// Dial connects and sends the initial session.update.
func (t *OpenAITransport) Dial(ctx context.Context, cfg Config) (Conn, error) {
	cfg = cfg.withDefaults()

	rs, err := t.Client.Connect(ctx, cfg.Model)
	if err != nil {
		return nil, classifyOpenAI("connect", err, ConnectionFailed)
	}

	sc := &openairealtime.SessionConfig{
		Modalities:        []string{openairealtime.ModalityText, openairealtime.ModalityAudio},
		Instructions:      cfg.SystemPrompt,
		Voice:             cfg.VoiceProfile,
		InputAudioFormat:  openairealtime.AudioFormatPCM16,
		OutputAudioFormat: openairealtime.AudioFormatPCM16,
	}
	if cfg.EnableInputTranscription {
		sc.InputAudioTranscription = &openairealtime.TranscriptionConfig{Model: "whisper-1"}
	}
	if err := rs.UpdateSession(sc); err != nil {
		rs.Close()
		return nil, classifyOpenAI("connect", err, ConnectionFailed)
	}

	c := &openaiConn{
		session:    rs,
		logger:     t.logger().With("provider", ProviderOpenAI),
		transcribe: cfg.EnableOutputTranscription,
		text:       make(textAccumulator),
	}
	c.next, c.stop = iter.Pull2(rs.Events())
	if c.in, err = newRateConverter(cfg.InputSampleRate, openairealtime.SampleRate); err == nil {
		c.out, err = newRateConverter(openairealtime.SampleRate, cfg.OutputSampleRate)
	}
	if err != nil {
		c.stop()
		c.Close()
		return nil, newError(ConnectionFailed, "connect", err)
	}
	return c, nil
}

// realtimeSession is the part of *openairealtime.Session used by openaiConn.
type realtimeSession interface {
	AppendAudio(pcm []byte) error
	CancelResponse() error
	Close() error
}

type openaiConn struct {
	session    realtimeSession
	logger     *slog.Logger
	transcribe bool

	in, out *resampler.Resampler

	// Recv only.
	next      func() (*openairealtime.ServerEvent, error, bool)
	stop      func()
	responses int
	text      textAccumulator

	closeOnce sync.Once
}

func (c *openaiConn) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := convertPCM16(c.in, data)
	if err != nil {
		return newError(KindUnknown, "send", err)
	}
	if err := c.session.AppendAudio(data); err != nil {
		return classifyOpenAI("send", err, TransportClosed)
	}
	return nil
}

func (c *openaiConn) Recv() (Event, error) {
	for {
		ev, err, ok := c.next()
		if !ok {
			c.stop()
			return Event{}, io.EOF
		}
		if err != nil {
			c.stop()
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return Event{}, io.EOF
			}
			return Event{}, classifyOpenAI("receive", err, TransportClosed)
		}
		if out, ok := c.translate(ev); ok {
			return out, nil
		}
	}
}

// translate maps a server event onto an Event. ok is false for events the
// session does not consume.
func (c *openaiConn) translate(ev *openairealtime.ServerEvent) (out Event, ok bool) {
	switch ev.Type {
	case openairealtime.EventTypeResponseAudioDelta:
		data, err := convertPCM16(c.out, ev.Audio)
		if err != nil {
			// Let the session count the chunk as undecodable.
			data = ev.Audio
		}
		return Event{Type: EventAudio, Audio: data}, true

	case openairealtime.EventTypeResponseAudioTranscriptDelta:
		text := c.text.add(Assistant, ev.Delta)
		return Event{Type: EventTranscript, Speaker: Assistant, Text: text}, c.transcribe
	case openairealtime.EventTypeResponseAudioTranscriptDone:
		c.text.reset(Assistant)
		return Event{Type: EventTranscript, Speaker: Assistant, Text: ev.Transcript, Final: true}, c.transcribe

	case openairealtime.EventTypeInputTranscriptionDelta:
		text := c.text.add(User, ev.Delta)
		return Event{Type: EventTranscript, Speaker: User, Text: text}, true
	case openairealtime.EventTypeInputTranscriptionCompleted:
		c.text.reset(User)
		return Event{Type: EventTranscript, Speaker: User, Text: ev.Transcript, Final: true}, true

	case openairealtime.EventTypeResponseCreated:
		c.responses++
	case openairealtime.EventTypeResponseDone:
		if c.responses > 0 {
			c.responses--
		}
		c.text.reset(Assistant)
		return Event{Type: EventTurnComplete}, true
	case openairealtime.EventTypeInputAudioBufferSpeechStarted:
		// Barge-in: stop the response so no further audio deltas arrive.
		if c.responses > 0 {
			c.responses = 0
			c.text.reset(Assistant)
			if err := c.session.CancelResponse(); err != nil {
				c.logger.Debug("cancel response", "error", err)
			}
			return Event{Type: EventInterrupted}, true
		}

	case openairealtime.EventTypeError, openairealtime.EventTypeInputTranscriptionFailed:
		if ev.Error != nil && ev.Error.Code == codeCancelNotActive {
			break
		}
		c.logger.Warn("openai realtime error event", "type", ev.Type, "error", ev.Error)
	}
	return Event{}, false
}

func (c *openaiConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.session.Close()
		if c.in != nil {
			c.in.Close()
		}
		if c.out != nil {
			c.out.Close()
		}
	})
	return err
}

// newRateConverter returns nil when no conversion is needed.
func newRateConverter(src, dst int) (*resampler.Resampler, error) {
	if src == dst {
		return nil, nil
	}
	return resampler.New(src, dst)
}

func convertPCM16(rs *resampler.Resampler, data []byte) ([]byte, error) {
	if rs == nil {
		return data, nil
	}
	samples, err := pcm.PCM16ToMono(data)
	if err != nil {
		return nil, err
	}
	out, err := rs.Process(samples)
	if err != nil {
		return nil, err
	}
	return pcm.FloatToPCM16(out), nil
}

func classifyOpenAI(op string, err error, def Kind) *Error {
	var apiErr *openairealtime.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Unauthorized():
			return newError(AuthRejected, op, err)
		case apiErr.Exhausted():
			return newError(QuotaExceeded, op, err)
		}
		return newError(def, op, err)
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return newError(TransportClosed, op, err)
	}
	return newError(def, op, err)
}
