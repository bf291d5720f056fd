// Package pcm provides types and utilities for working with PCM (Pulse Code Modulation) audio data.
//
// The package defines 16-bit little-endian formats, an immutable float chunk
// type used between capture, transport and playback, conversions between
// float samples in [-1, 1] and PCM16 bytes, and the canonical 44-byte WAV
// container.
//
// Key types:
//   - Format: sample rate and channel count of 16-bit PCM
//   - FloatChunk: immutable mono float32 samples with a sample rate
//
// Example usage:
//
//	// Encode capture output for the wire
//	data := pcm.FloatToPCM16(chunk.Samples())
//
//	// Decode a mono payload from the model
//	samples, err := pcm.PCM16ToMono(payload)
//
//	// Samples in a 20ms frame of 16kHz audio
//	n := pcm.L16Mono16K.SamplesInDuration(20 * time.Millisecond)
package pcm
