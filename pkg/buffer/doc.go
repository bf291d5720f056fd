// Package buffer provides a thread-safe ring buffer for streaming data.
//
// RingBuffer keeps a sliding window of the most recent elements: writes never
// block and overwrite the oldest data once the buffer is full. It backs the
// playback analyser tap (recent output samples for spectrum sampling) and the
// CLI log pane (recent log lines).
//
// Example usage:
//
//	rb := buffer.RingN[float32](2048)
//	rb.Write(frame)
//
//	// Copy the most recent 512 samples without consuming them
//	window := make([]float32, 512)
//	n := rb.Latest(window)
package buffer
