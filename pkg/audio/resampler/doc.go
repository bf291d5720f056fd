// Package resampler converts mono float audio between sample rates using a
// pure Go polyphase resampler (no CGO/FFI dependencies).
//
// It supports:
//   - Block-wise sample rate conversion (e.g., 48000Hz device input to 16000Hz)
//   - Stereo to mono downmix of device frames
//
// A Resampler keeps filter state between calls, so consecutive blocks of one
// stream must go through the same instance.
//
// Example usage:
//
//	r, err := resampler.New(48000, 16000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := r.Process(block)
package resampler
