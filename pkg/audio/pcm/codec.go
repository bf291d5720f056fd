package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is returned when PCM16 input is not a whole number of frames.
var ErrMalformed = errors.New("pcm: malformed pcm16 data")

const scale = 32768

// FloatToPCM16 encodes samples as little-endian signed 16-bit PCM. Samples
// are clamped to [-1, 1]; NaN encodes as silence.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

// Int16ToFloat converts device samples to floats in [-1, 1).
func Int16ToFloat(dst []float32, src []int16) []float32 {
	if cap(dst) < len(src) {
		dst = make([]float32, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = float32(v) / scale
	}
	return dst
}

// FloatToInt16 converts floats to device samples with the same rules as
// FloatToPCM16.
func FloatToInt16(dst []int16, src []float32) []int16 {
	if cap(dst) < len(src) {
		dst = make([]int16, len(src))
	}
	dst = dst[:len(src)]
	for i, s := range src {
		dst[i] = floatToInt16(s)
	}
	return dst
}

func floatToInt16(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	v = math.Round(v * scale)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	return int16(v)
}

// PCM16ToFloat decodes interleaved little-endian PCM16 into one slice per
// channel. Each value is divided by 32768.
func PCM16ToFloat(data []byte, channels int) ([][]float32, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidFormat, channels)
	}
	frame := channels * 2
	if len(data)%frame != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformed, len(data), frame)
	}
	n := len(data) / frame
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, n)
	}
	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			out[c][i] = float32(int16(binary.LittleEndian.Uint16(data[off:]))) / scale
		}
	}
	return out, nil
}

// PCM16ToMono decodes a single-channel PCM16 payload.
func PCM16ToMono(data []byte) ([]float32, error) {
	chans, err := PCM16ToFloat(data, 1)
	if err != nil {
		return nil, err
	}
	return chans[0], nil
}
