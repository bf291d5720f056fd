package openairealtime

// Models.
const (
	ModelGPT4oRealtimePreview     = "gpt-4o-realtime-preview"
	ModelGPT4oMiniRealtimePreview = "gpt-4o-mini-realtime-preview"
)

// SampleRate is the rate of pcm16 audio in both directions.
const SampleRate = 24000

// AudioFormatPCM16 is 16-bit PCM audio at 24kHz, mono, little-endian.
const AudioFormatPCM16 = "pcm16"

// Voices.
const (
	VoiceAlloy   = "alloy"
	VoiceAsh     = "ash"
	VoiceBallad  = "ballad"
	VoiceCoral   = "coral"
	VoiceEcho    = "echo"
	VoiceSage    = "sage"
	VoiceShimmer = "shimmer"
	VoiceVerse   = "verse"
)

// VAD modes for turn detection.
const (
	VADServerVAD   = "server_vad"
	VADSemanticVAD = "semantic_vad"
)

// Modalities.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// SessionConfig is the payload of session.update.
type SessionConfig struct {
	Modalities        []string `json:"modalities,omitzero"`
	Instructions      string   `json:"instructions,omitzero"`
	Voice             string   `json:"voice,omitzero"`
	InputAudioFormat  string   `json:"input_audio_format,omitzero"`
	OutputAudioFormat string   `json:"output_audio_format,omitzero"`

	// InputAudioTranscription enables transcripts of the user's audio.
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`

	// TurnDetection nil keeps the server default (server VAD).
	TurnDetection *TurnDetection `json:"turn_detection,omitzero"`

	Temperature *float64 `json:"temperature,omitzero"`
}

// TranscriptionConfig configures input audio transcription.
type TranscriptionConfig struct {
	// Model defaults to whisper-1 on the server.
	Model    string `json:"model,omitzero"`
	Language string `json:"language,omitzero"`
}

// TurnDetection configures voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type,omitzero"`
	Threshold         float64 `json:"threshold,omitzero"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitzero"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitzero"`
	CreateResponse    *bool   `json:"create_response,omitzero"`
	InterruptResponse *bool   `json:"interrupt_response,omitzero"`
}

// SessionResource is the session state reported by the server.
type SessionResource struct {
	ID                      string               `json:"id,omitzero"`
	Model                   string               `json:"model,omitzero"`
	ExpiresAt               int64                `json:"expires_at,omitzero"`
	Modalities              []string             `json:"modalities,omitzero"`
	Voice                   string               `json:"voice,omitzero"`
	InputAudioFormat        string               `json:"input_audio_format,omitzero"`
	OutputAudioFormat       string               `json:"output_audio_format,omitzero"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`
	TurnDetection           *TurnDetection       `json:"turn_detection,omitzero"`
}

// Response statuses.
const (
	ResponseStatusCompleted  = "completed"
	ResponseStatusCancelled  = "cancelled"
	ResponseStatusIncomplete = "incomplete"
	ResponseStatusFailed     = "failed"
)

// ResponseResource is a model response.
type ResponseResource struct {
	ID            string         `json:"id,omitzero"`
	Status        string         `json:"status,omitzero"`
	StatusDetails *StatusDetails `json:"status_details,omitzero"`
	Usage         *Usage         `json:"usage,omitzero"`
}

// StatusDetails explains a non-completed response.
type StatusDetails struct {
	Type   string `json:"type,omitzero"`
	Reason string `json:"reason,omitzero"`
	Error  *Error `json:"error,omitzero"`
}

// Usage contains token usage information.
type Usage struct {
	TotalTokens  int `json:"total_tokens,omitzero"`
	InputTokens  int `json:"input_tokens,omitzero"`
	OutputTokens int `json:"output_tokens,omitzero"`
}
