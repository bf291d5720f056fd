package openairealtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session is a connected realtime websocket. Send methods are safe for
// concurrent use; Events must be ranged over by a single goroutine.
type Session struct {
	conn  *websocket.Conn
	model string

	writeMu sync.Mutex

	mu        sync.Mutex
	sessionID string

	events    chan eventOrError
	closeCh   chan struct{}
	closeOnce sync.Once
}

type eventOrError struct {
	event *ServerEvent
	err   error
}

func newSession(conn *websocket.Conn, model string) *Session {
	s := &Session{
		conn:    conn,
		model:   model,
		events:  make(chan eventOrError, 100),
		closeCh: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// Model returns the model the session was opened with.
func (s *Session) Model() string { return s.model }

// SessionID returns the server-assigned ID, or "" before session.created.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// UpdateSession sends session.update.
func (s *Session) UpdateSession(cfg *SessionConfig) error {
	return s.send(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeSessionUpdate,
		"session":  cfg,
	})
}

// AppendAudio appends PCM16 24kHz mono audio to the input buffer.
func (s *Session) AppendAudio(pcm []byte) error {
	return s.send(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeInputAudioBufferAppend,
		"audio":    base64.StdEncoding.EncodeToString(pcm),
	})
}

// CancelResponse stops the response in progress. The server answers with
// an error event when no response is active.
func (s *Session) CancelResponse() error {
	return s.send(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeResponseCancel,
	})
}

// Events yields server events in arrival order. Iteration ends after the
// first error or when the session is closed. Error events that end the
// session are yielded as *Error; others are yielded as events.
func (s *Session) Events() iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			default:
			}
			select {
			case <-s.closeCh:
				return
			case item, ok := <-s.events:
				if !ok {
					return
				}
				if !yield(item.event, item.err) || item.err != nil {
					return
				}
			}
		}
	}
}

// Close closes the websocket. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *Session) send(event map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		if b, err := json.Marshal(event); err == nil {
			str := string(b)
			if len(str) > 300 {
				str = str[:300] + "..."
			}
			slog.Debug("openai-realtime: send", "type", event["type"], "content", str)
		}
	}
	if err := s.conn.WriteJSON(event); err != nil {
		return fmt.Errorf("openai-realtime: write: %w", err)
	}
	return nil
}

func (s *Session) deliver(item eventOrError) bool {
	select {
	case <-s.closeCh:
		return false
	case s.events <- item:
		return true
	}
}

func (s *Session) readLoop() {
	defer close(s.events)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.deliver(eventOrError{err: fmt.Errorf("openai-realtime: read: %w", err)})
			return
		}

		event, err := parseEvent(message)
		if err != nil {
			slog.Warn("openai-realtime: dropping unparseable event", "error", err, "len", len(message))
			continue
		}
		if event.Type != EventTypeResponseAudioDelta {
			slog.Debug("openai-realtime: recv", "type", event.Type, "len", len(message))
		}

		switch {
		case event.Type == EventTypeSessionCreated && event.Session != nil:
			s.mu.Lock()
			s.sessionID = event.Session.ID
			s.mu.Unlock()
		case event.Type == EventTypeError && event.Error != nil && event.Error.Fatal():
			s.deliver(eventOrError{err: event.Error})
			return
		}

		if !s.deliver(eventOrError{event: event}) {
			return
		}
	}
}

func parseEvent(message []byte) (*ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, fmt.Errorf("openai-realtime: parse event: %w", err)
	}
	event.Raw = message

	if event.Type == EventTypeResponseAudioDelta && event.Delta != "" {
		audio, err := base64.StdEncoding.DecodeString(event.Delta)
		if err != nil {
			return nil, fmt.Errorf("openai-realtime: decode audio delta: %w", err)
		}
		event.Audio = audio
	}
	return &event, nil
}
