// Package audio provides audio processing utilities for live voice sessions.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - pcm: 16-bit PCM formats, float conversion and WAV containers
//   - capture: microphone capture as a stream of float chunks
//   - playback: gapless scheduling of decoded chunks on an output clock
//   - spectrum: volume and frequency bars sampled from the output
//   - resampler: sample rate conversion
//   - portaudio: device bindings (cgo)
//
// Example usage:
//
//	import "github.com/stylehub-project/news-sub000/pkg/audio/pcm"
//
//	// Encode microphone samples for the wire
//	data := pcm.FloatToPCM16(samples)
//
//	// Wrap decoded model output in a WAV file
//	wav := pcm.BuildContainer(out, 24000)
package audio
