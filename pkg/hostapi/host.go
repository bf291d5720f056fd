package hostapi

import (
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

// Level is the payload of a level event.
type Level struct {
	Volume float64   `json:"volume"`
	Bars   []float64 `json:"bars"`
}

// NewHost returns a voicelive.Host publishing every callback of session to
// the hub, then forwarding it to next. next may be nil.
func (h *Hub) NewHost(session string, next voicelive.Host) voicelive.Host {
	if next == nil {
		next = voicelive.HostFuncs{}
	}
	pub := func(typ string, data any) {
		h.Publish(Event{Type: typ, Session: session, Data: data})
	}
	return voicelive.HostFuncs{
		Open: func() {
			pub(EventOpen, nil)
			next.OnOpen()
		},
		AudioLevel: func(volume float64, bars []float64) {
			pub(EventLevel, Level{Volume: volume, Bars: bars})
			next.OnAudioLevel(volume, bars)
		},
		Transcript: func(turns []voicelive.Turn) {
			pub(EventTranscript, turns)
			next.OnTranscript(turns)
		},
		SpeakingChanged: func(speaking bool) {
			pub(EventSpeaking, speaking)
			next.OnSpeakingChanged(speaking)
		},
		Error: func(err error) {
			pub(EventError, errorBody(err))
			next.OnError(err)
		},
		Close: func() {
			pub(EventClose, nil)
			next.OnClose()
		},
	}
}

type errorPayload struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func errorBody(err error) errorPayload {
	p := errorPayload{Message: err.Error()}
	if k := voicelive.KindOf(err); k != voicelive.KindUnknown {
		p.Kind = k.String()
	}
	return p
}
