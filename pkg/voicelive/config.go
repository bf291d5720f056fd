package voicelive

import (
	"fmt"
	"time"
)

// Provider names a conversational backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Config is the configuration consumed by Connect.
type Config struct {
	Provider Provider `json:"provider,omitzero" yaml:"provider,omitempty"`
	Model    string   `json:"model,omitzero" yaml:"model,omitempty"`

	// VoiceProfile is a provider voice name, e.g. "Puck" or "alloy".
	VoiceProfile string `json:"voice_profile,omitzero" yaml:"voice_profile,omitempty"`
	SystemPrompt string `json:"system_prompt,omitzero" yaml:"system_prompt,omitempty"`

	EnableInputTranscription  bool `json:"enable_input_transcription" yaml:"enable_input_transcription"`
	EnableOutputTranscription bool `json:"enable_output_transcription" yaml:"enable_output_transcription"`

	// InputSampleRate is the rate of audio passed to SendAudio.
	InputSampleRate int `json:"input_sample_rate_hz,omitzero" yaml:"input_sample_rate_hz,omitempty"`
	// OutputSampleRate is the rate of chunks delivered by OnAudioChunk.
	OutputSampleRate int `json:"output_sample_rate_hz,omitzero" yaml:"output_sample_rate_hz,omitempty"`

	// ConnectTimeout bounds the transport handshake.
	ConnectTimeout time.Duration `json:"connect_timeout,omitzero" yaml:"connect_timeout,omitempty"`

	// SendQueue is the number of encoded chunks that may wait for the
	// transport. Zero drops a chunk whenever the transport is busy.
	SendQueue int `json:"send_queue,omitzero" yaml:"send_queue,omitempty"`
}

// Defaults.
const (
	DefaultInputSampleRate  = 16000
	DefaultOutputSampleRate = 24000
	DefaultConnectTimeout   = 15 * time.Second
	DefaultGeminiModel      = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultGeminiVoice      = "Puck"
	DefaultOpenAIModel      = "gpt-4o-realtime-preview"
	DefaultOpenAIVoice      = "alloy"
)

// DefaultConfig returns a Gemini configuration with both transcriptions
// enabled.
func DefaultConfig() Config {
	return Config{
		Provider:                  ProviderGemini,
		EnableInputTranscription:  true,
		EnableOutputTranscription: true,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}
	if c.Model == "" {
		switch c.Provider {
		case ProviderOpenAI:
			c.Model = DefaultOpenAIModel
		default:
			c.Model = DefaultGeminiModel
		}
	}
	if c.VoiceProfile == "" {
		switch c.Provider {
		case ProviderOpenAI:
			c.VoiceProfile = DefaultOpenAIVoice
		default:
			c.VoiceProfile = DefaultGeminiVoice
		}
	}
	if c.InputSampleRate == 0 {
		c.InputSampleRate = DefaultInputSampleRate
	}
	if c.OutputSampleRate == 0 {
		c.OutputSampleRate = DefaultOutputSampleRate
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.SendQueue < 0 {
		c.SendQueue = 0
	}
	return c
}

// Validate reports values that defaults cannot repair.
func (c Config) Validate() error {
	switch c.Provider {
	case "", ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("voicelive: unknown provider %q", c.Provider)
	}
	if c.InputSampleRate < 0 || c.OutputSampleRate < 0 {
		return fmt.Errorf("voicelive: negative sample rate")
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("voicelive: negative connect timeout")
	}
	if c.SendQueue < 0 {
		return fmt.Errorf("voicelive: negative send queue")
	}
	return nil
}
