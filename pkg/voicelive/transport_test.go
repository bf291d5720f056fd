package voicelive

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"testing"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/gorilla/websocket"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	openairealtime "github.com/stylehub-project/news-sub000/pkg/openai-realtime"
)

func TestTextAccumulator(t *testing.T) {
	a := make(textAccumulator)
	a.add(User, "what's ")
	if got := a.add(User, "new"); got != "what's new" {
		t.Errorf("add = %q", got)
	}
	if got := a.add(Assistant, "Hi"); got != "Hi" {
		t.Errorf("assistant = %q", got)
	}
	a.reset(User)
	if got := a.add(User, "again"); got != "again" {
		t.Errorf("after reset = %q", got)
	}
}

func newTestGeminiConn() *geminiConn {
	return &geminiConn{logger: slog.Default(), text: make(textAccumulator)}
}

func TestGeminiTranslate(t *testing.T) {
	c := newTestGeminiConn()
	audio := []byte{1, 0, 2, 0}

	msgs := []*genai.LiveServerMessage{
		{},
		{ServerContent: &genai.LiveServerContent{
			InputTranscription: &genai.Transcription{Text: "top "},
		}},
		{ServerContent: &genai.LiveServerContent{
			InputTranscription:  &genai.Transcription{Text: "stories", Finished: true},
			OutputTranscription: &genai.Transcription{Text: "Markets"},
			ModelTurn: &genai.Content{Parts: []*genai.Part{
				nil,
				{Text: "ignored"},
				{InlineData: &genai.Blob{Data: audio, MIMEType: "audio/pcm;rate=24000"}},
			}},
		}},
		{ServerContent: &genai.LiveServerContent{
			OutputTranscription: &genai.Transcription{Text: " rallied"},
			Interrupted:         true,
			TurnComplete:        true,
		}},
		{ServerContent: &genai.LiveServerContent{
			OutputTranscription: &genai.Transcription{Text: "Next"},
		}},
	}
	var got []Event
	for _, m := range msgs {
		got = c.translate(m, got)
	}

	want := []Event{
		{Type: EventTranscript, Speaker: User, Text: "top "},
		{Type: EventTranscript, Speaker: User, Text: "top stories", Final: true},
		{Type: EventTranscript, Speaker: Assistant, Text: "Markets"},
		{Type: EventAudio, Audio: audio},
		{Type: EventTranscript, Speaker: Assistant, Text: "Markets rallied"},
		{Type: EventInterrupted},
		{Type: EventTurnComplete},
		{Type: EventTranscript, Speaker: Assistant, Text: "Next"},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v", got)
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Type != w.Type || g.Speaker != w.Speaker || g.Text != w.Text || g.Final != w.Final || !slices.Equal(g.Audio, w.Audio) {
			t.Errorf("event %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestGeminiTranscriptionFinishedWithoutText(t *testing.T) {
	c := newTestGeminiConn()
	c.transcription(nil, Assistant, &genai.Transcription{Text: "Good night"})
	evs := c.transcription(nil, Assistant, &genai.Transcription{Finished: true})
	if len(evs) != 1 || evs[0].Text != "Good night" || !evs[0].Final {
		t.Errorf("events = %+v", evs)
	}
	if evs := c.transcription(nil, Assistant, &genai.Transcription{}); len(evs) != 0 {
		t.Errorf("empty transcription produced %+v", evs)
	}
}

func TestClassifyGemini(t *testing.T) {
	grpcAuth, _ := apierror.FromError(status.Error(codes.Unauthenticated, "API key not valid"))
	tests := []struct {
		name string
		err  error
		def  Kind
		want Kind
	}{
		{"http 401", genai.APIError{Code: http.StatusUnauthorized, Message: "denied"}, ConnectionFailed, AuthRejected},
		{"http 429", genai.APIError{Code: http.StatusTooManyRequests}, ConnectionFailed, QuotaExceeded},
		{"wrapped 403", fmt.Errorf("dial: %w", genai.APIError{Code: http.StatusForbidden}), ConnectionFailed, AuthRejected},
		{"status text", genai.APIError{Code: http.StatusBadRequest, Status: "RESOURCE_EXHAUSTED"}, ConnectionFailed, QuotaExceeded},
		{"other status", genai.APIError{Code: http.StatusInternalServerError}, ConnectionFailed, ConnectionFailed},
		{"gax unwrap", grpcAuth, ConnectionFailed, AuthRejected},
		{"close quota", &websocket.CloseError{Code: 1011, Text: "You exceeded your current quota"}, TransportClosed, QuotaExceeded},
		{"close auth", &websocket.CloseError{Code: websocket.ClosePolicyViolation, Text: "API key not valid"}, TransportClosed, AuthRejected},
		{"close other", &websocket.CloseError{Code: websocket.CloseGoingAway, Text: "bye"}, ConnectionFailed, TransportClosed},
		{"plain", errors.New("connection reset"), TransportClosed, TransportClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyGemini("connect", tt.err, tt.def)
			if err.Kind != tt.want {
				t.Errorf("kind = %v, want %v", err.Kind, tt.want)
			}
			if err.Err == nil || err.Op != "connect" {
				t.Errorf("error = %+v", err)
			}
		})
	}
}

// fakeRealtime records the calls openaiConn makes on its session.
type fakeRealtime struct {
	appended [][]byte
	cancels  int
}

func (f *fakeRealtime) AppendAudio(b []byte) error {
	f.appended = append(f.appended, b)
	return nil
}

func (f *fakeRealtime) CancelResponse() error {
	f.cancels++
	return nil
}

func (f *fakeRealtime) Close() error { return nil }

func TestOpenAITranslate(t *testing.T) {
	rt := &fakeRealtime{}
	c := &openaiConn{session: rt, logger: slog.Default(), transcribe: true, text: make(textAccumulator)}

	type step struct {
		ev     openairealtime.ServerEvent
		want   Event
		wantOK bool
	}
	steps := []step{
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeInputAudioBufferSpeechStarted}, Event{}, false},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeInputTranscriptionDelta, Delta: "any "}, Event{Type: EventTranscript, Speaker: User, Text: "any "}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeInputTranscriptionDelta, Delta: "news"}, Event{Type: EventTranscript, Speaker: User, Text: "any news"}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeInputTranscriptionCompleted, Transcript: "any news?"}, Event{Type: EventTranscript, Speaker: User, Text: "any news?", Final: true}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeResponseCreated}, Event{}, false},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeResponseAudioTranscriptDelta, Delta: "Rain"}, Event{Type: EventTranscript, Speaker: Assistant, Text: "Rain"}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeResponseAudioTranscriptDelta, Delta: " later"}, Event{Type: EventTranscript, Speaker: Assistant, Text: "Rain later"}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeResponseAudioDelta, Audio: []byte{5, 0}}, Event{Type: EventAudio, Audio: []byte{5, 0}}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeInputAudioBufferSpeechStarted}, Event{Type: EventInterrupted}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeError, Error: &openairealtime.Error{Code: codeCancelNotActive}}, Event{}, false},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeResponseDone}, Event{Type: EventTurnComplete}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeResponseAudioTranscriptDelta, Delta: "Sun"}, Event{Type: EventTranscript, Speaker: Assistant, Text: "Sun"}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeResponseAudioTranscriptDone, Transcript: "Sunny."}, Event{Type: EventTranscript, Speaker: Assistant, Text: "Sunny.", Final: true}, true},
		{openairealtime.ServerEvent{Type: openairealtime.EventTypeRateLimitsUpdated}, Event{}, false},
	}
	for i, s := range steps {
		got, ok := c.translate(&s.ev)
		if ok != s.wantOK {
			t.Fatalf("step %d (%s): ok = %v", i, s.ev.Type, ok)
		}
		if got.Type != s.want.Type || got.Speaker != s.want.Speaker || got.Text != s.want.Text ||
			got.Final != s.want.Final || !slices.Equal(got.Audio, s.want.Audio) {
			t.Errorf("step %d (%s) = %+v, want %+v", i, s.ev.Type, got, s.want)
		}
	}
	if rt.cancels != 1 {
		t.Errorf("CancelResponse calls = %d, want 1", rt.cancels)
	}
}

func TestOpenAIAssistantTranscriptDisabled(t *testing.T) {
	c := &openaiConn{session: &fakeRealtime{}, logger: slog.Default(), text: make(textAccumulator)}
	if _, ok := c.translate(&openairealtime.ServerEvent{Type: openairealtime.EventTypeResponseAudioTranscriptDelta, Delta: "x"}); ok {
		t.Error("assistant transcript delivered with output transcription off")
	}
	if _, ok := c.translate(&openairealtime.ServerEvent{Type: openairealtime.EventTypeInputTranscriptionDelta, Delta: "y"}); !ok {
		t.Error("user transcript dropped")
	}
}

func TestClassifyOpenAI(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"handshake 401", &openairealtime.Error{HTTPStatus: http.StatusUnauthorized}, AuthRejected},
		{"invalid key", fmt.Errorf("read: %w", &openairealtime.Error{Code: openairealtime.CodeInvalidAPIKey}), AuthRejected},
		{"handshake 429", &openairealtime.Error{HTTPStatus: http.StatusTooManyRequests}, QuotaExceeded},
		{"insufficient quota", &openairealtime.Error{Code: openairealtime.CodeInsufficientQuota}, QuotaExceeded},
		{"expired", &openairealtime.Error{Code: openairealtime.CodeSessionExpired}, ConnectionFailed},
		{"close", fmt.Errorf("read: %w", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}), TransportClosed},
		{"plain", errors.New("dial tcp: refused"), ConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyOpenAI("connect", tt.err, ConnectionFailed).Kind; got != tt.want {
				t.Errorf("kind = %v, want %v", got, tt.want)
			}
		})
	}
}
