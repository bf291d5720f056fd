package voicelive

import (
	"context"
)

// Transport dials a conversational backend.
type Transport interface {
	// Dial opens a connection configured by cfg. Errors should be *Error
	// values classified as ConnectionFailed, AuthRejected or QuotaExceeded.
	Dial(ctx context.Context, cfg Config) (Conn, error)
}

// Conn is an open backend connection. Send and Recv are called from
// different goroutines; Close must unblock both.
type Conn interface {
	// Send transmits PCM16 mono audio at the configured input rate.
	Send(ctx context.Context, pcm16 []byte) error

	// Recv blocks until the next event. It returns io.EOF when the backend
	// closed the connection.
	Recv() (Event, error)

	Close() error
}

// EventType identifies a backend Event.
type EventType int

const (
	// EventAudio carries PCM16 mono audio at the configured output rate.
	EventAudio EventType = iota + 1
	// EventTranscript carries transcript text for one speaker.
	EventTranscript
	// EventTurnComplete marks the end of an assistant turn.
	EventTurnComplete
	// EventInterrupted reports that the user barged in and the backend
	// abandoned the rest of the assistant turn.
	EventInterrupted
)

func (t EventType) String() string {
	switch t {
	case EventAudio:
		return "audio"
	case EventTranscript:
		return "transcript"
	case EventTurnComplete:
		return "turn_complete"
	case EventInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// Event is one typed message from the backend. Transcript text is the full
// current text of the speaker's turn.
type Event struct {
	Type    EventType
	Audio   []byte
	Speaker Speaker
	Text    string
	Final   bool
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, cfg Config) (Conn, error)

// Dial implements Transport.
func (f TransportFunc) Dial(ctx context.Context, cfg Config) (Conn, error) {
	return f(ctx, cfg)
}

// textAccumulator turns incremental transcript deltas into the full text of
// each speaker's current turn.
type textAccumulator map[Speaker]string

func (a textAccumulator) add(sp Speaker, delta string) string {
	a[sp] += delta
	return a[sp]
}

func (a textAccumulator) reset(speakers ...Speaker) {
	for _, sp := range speakers {
		delete(a, sp)
	}
}
