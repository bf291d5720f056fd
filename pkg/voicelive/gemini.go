package voicelive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
	"github.com/stylehub-project/news-sub000/pkg/audio/resampler"
)

// geminiOutputRate is the rate of audio produced by the Live API.
const geminiOutputRate = 24000

var _ Transport = (*GeminiTransport)(nil)

// GeminiTransport connects sessions to the Gemini Live API.
type GeminiTransport struct {
	Client *genai.Client
	Logger *slog.Logger
}

// NewGeminiTransport creates a Gemini API client for apiKey.
func NewGeminiTransport(ctx context.Context, apiKey string) (*GeminiTransport, error) {
	if apiKey == "" {
		return nil, newError(AuthRejected, "connect", errors.New("missing Gemini API key"))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("voicelive: gemini client: %w", err)
	}
	return &GeminiTransport{Client: client}, nil
}

func (t *GeminiTransport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// Dial opens a Live session. The voice profile selects a prebuilt voice and
// the system prompt becomes the system instruction.
func (t *GeminiTransport) Dial(ctx context.Context, cfg Config) (Conn, error) {
	cfg = cfg.withDefaults()

	lc := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.VoiceProfile},
			},
		},
	}
	if cfg.SystemPrompt != "" {
		lc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(cfg.SystemPrompt)},
		}
	}
	if cfg.EnableInputTranscription {
		lc.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.EnableOutputTranscription {
		lc.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	session, err := t.Client.Live.Connect(ctx, cfg.Model, lc)
	if err != nil {
		return nil, classifyGemini("connect", err, ConnectionFailed)
	}

	c := &geminiConn{
		session: session,
		mime:    pcm.Format{SampleRate: cfg.InputSampleRate, Channels: 1}.MIMEType(),
		logger:  t.logger().With("provider", ProviderGemini),
		text:    make(textAccumulator),
	}
	if c.out, err = newRateConverter(geminiOutputRate, cfg.OutputSampleRate); err != nil {
		session.Close()
		return nil, newError(ConnectionFailed, "connect", err)
	}
	return c, nil
}

type geminiConn struct {
	session *genai.Session
	mime    string
	out     *resampler.Resampler
	logger  *slog.Logger

	pending   []Event
	text      textAccumulator
	closeOnce sync.Once
}

func (c *geminiConn) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: data, MIMEType: c.mime},
	})
	if err != nil {
		return classifyGemini("send", err, TransportClosed)
	}
	return nil
}

func (c *geminiConn) Recv() (Event, error) {
	for len(c.pending) == 0 {
		msg, err := c.session.Receive()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return Event{}, io.EOF
			}
			return Event{}, classifyGemini("receive", err, TransportClosed)
		}
		if msg.GoAway != nil {
			c.logger.Debug("gemini go away")
		}
		c.pending = c.translate(msg, c.pending)
	}
	ev := c.pending[0]
	c.pending = c.pending[1:]
	return ev, nil
}

// translate appends the events carried by msg to dst. Transcription events
// precede audio so that captions lead the voice.
func (c *geminiConn) translate(msg *genai.LiveServerMessage, dst []Event) []Event {
	sc := msg.ServerContent
	if sc == nil {
		return dst
	}
	dst = c.transcription(dst, User, sc.InputTranscription)
	dst = c.transcription(dst, Assistant, sc.OutputTranscription)
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			dst = append(dst, Event{Type: EventAudio, Audio: c.resample(part.InlineData.Data)})
		}
	}
	if sc.Interrupted {
		c.text.reset(Assistant)
		dst = append(dst, Event{Type: EventInterrupted})
	}
	if sc.TurnComplete {
		c.text.reset(User, Assistant)
		dst = append(dst, Event{Type: EventTurnComplete})
	}
	return dst
}

// transcription appends the accumulated text of sp when tr carries news.
func (c *geminiConn) transcription(dst []Event, sp Speaker, tr *genai.Transcription) []Event {
	if tr == nil || (tr.Text == "" && !tr.Finished) {
		return dst
	}
	text := c.text.add(sp, tr.Text)
	if tr.Finished {
		c.text.reset(sp)
	}
	return append(dst, Event{Type: EventTranscript, Speaker: sp, Text: text, Final: tr.Finished})
}

// resample converts backend audio to the configured output rate. Malformed
// input is passed through so the session can count it as a decode failure.
func (c *geminiConn) resample(data []byte) []byte {
	out, err := convertPCM16(c.out, data)
	if err != nil {
		return data
	}
	return out
}

func (c *geminiConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.session.Close()
		if c.out != nil {
			c.out.Close()
		}
	})
	return err
}

// classifyGemini maps Gemini API and websocket errors onto a Kind.
func classifyGemini(op string, err error, def Kind) *Error {
	if e, ok := err.(*apierror.APIError); ok {
		err = e.Unwrap()
	}

	var (
		apiErr genai.APIError
		closeE *websocket.CloseError
	)
	switch {
	case errors.As(err, &apiErr):
		return newError(kindForStatus(apiErr.Code, apiErr.Status+" "+apiErr.Message, def), op, err)
	case errors.As(err, &closeE):
		switch {
		case quotaText(closeE.Text):
			return newError(QuotaExceeded, op, err)
		case closeE.Code == websocket.ClosePolicyViolation && authText(closeE.Text):
			return newError(AuthRejected, op, err)
		}
		return newError(TransportClosed, op, err)
	}
	return newError(kindForStatus(0, err.Error(), def), op, err)
}

// kindForStatus classifies by HTTP status, falling back to the message text.
func kindForStatus(code int, text string, def Kind) Kind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return AuthRejected
	case http.StatusTooManyRequests:
		return QuotaExceeded
	}
	switch {
	case quotaText(text):
		return QuotaExceeded
	case authText(text):
		return AuthRejected
	}
	return def
}

func quotaText(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "quota") || strings.Contains(s, "resource_exhausted") ||
		strings.Contains(s, "resource exhausted")
}

func authText(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "api key") || strings.Contains(s, "unauthenticated") ||
		strings.Contains(s, "permission_denied") || strings.Contains(s, "401") ||
		strings.Contains(s, "403")
}
