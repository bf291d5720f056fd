package openairealtime

// Client event types.
const (
	EventTypeSessionUpdate          = "session.update"
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeResponseCancel         = "response.cancel"
)

// Server event types.
const (
	EventTypeError = "error"

	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	EventTypeInputAudioBufferCommitted     = "input_audio_buffer.committed"
	EventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	EventTypeInputTranscriptionDelta     = "conversation.item.input_audio_transcription.delta"
	EventTypeInputTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	EventTypeInputTranscriptionFailed    = "conversation.item.input_audio_transcription.failed"

	EventTypeResponseCreated = "response.created"
	EventTypeResponseDone    = "response.done"

	EventTypeResponseAudioDelta           = "response.audio.delta"
	EventTypeResponseAudioDone            = "response.audio.done"
	EventTypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseAudioTranscriptDone  = "response.audio_transcript.done"

	EventTypeRateLimitsUpdated = "rate_limits.updated"
)

// ServerEvent is one message received from the server. Only the fields
// relevant to its Type are set.
type ServerEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitzero"`

	// Session is set on session.created and session.updated.
	Session *SessionResource `json:"session,omitzero"`

	// Response is set on response.created and response.done.
	Response   *ResponseResource `json:"response,omitzero"`
	ResponseID string            `json:"response_id,omitzero"`

	ItemID       string `json:"item_id,omitzero"`
	ContentIndex int    `json:"content_index,omitzero"`
	AudioStartMs int    `json:"audio_start_ms,omitzero"`
	AudioEndMs   int    `json:"audio_end_ms,omitzero"`

	// Transcript is the full text on *.done and *.completed events.
	Transcript string `json:"transcript,omitzero"`

	// Delta is incremental text, or base64 audio on response.audio.delta.
	Delta string `json:"delta,omitzero"`

	// Audio is the decoded PCM16 of a response.audio.delta.
	Audio []byte `json:"-"`

	// Error is set on error and transcription failure events.
	Error *Error `json:"error,omitzero"`

	RateLimits []RateLimit `json:"rate_limits,omitzero"`

	// Raw is the original JSON message.
	Raw []byte `json:"-"`
}

// RateLimit represents rate limit information.
type RateLimit struct {
	Name         string  `json:"name"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetSeconds float64 `json:"reset_seconds"`
}
