package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header.
const WAVHeaderSize = 44

// ErrNotWAV is returned by DecodeWAV for data without a PCM16 WAV header.
var ErrNotWAV = errors.New("pcm: not a pcm16 wav container")

// wavHeader is the canonical 44-byte header laid out for binary.Write.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

func newWAVHeader(f Format, dataLen int) wavHeader {
	return wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(WAVHeaderSize - 8 + dataLen),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.BytesRate()),
		BlockAlign:    uint16(f.FrameSize()),
		BitsPerSample: Depth,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataLen),
	}
}

// BuildContainer encodes mono samples as a PCM16 WAV file.
func BuildContainer(samples []float32, sampleRate int) []byte {
	f := Format{SampleRate: sampleRate, Channels: 1}
	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(samples)*2))
	// bytes.Buffer writes cannot fail.
	_ = WriteWAV(buf, f, FloatToPCM16(samples))
	return buf.Bytes()
}

// WriteWAV writes a header for f followed by the PCM16 payload.
func WriteWAV(w io.Writer, f Format, data []byte) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, newWAVHeader(f, len(data))); err != nil {
		return fmt.Errorf("pcm: write wav header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("pcm: write wav data: %w", err)
	}
	return nil
}

// DecodeWAV parses a canonical PCM16 WAV file and returns its format and
// payload. The payload aliases data.
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < WAVHeaderSize {
		return Format{}, nil, fmt.Errorf("%w: %d bytes", ErrNotWAV, len(data))
	}
	var h wavHeader
	if err := binary.Read(bytes.NewReader(data[:WAVHeaderSize]), binary.LittleEndian, &h); err != nil {
		return Format{}, nil, fmt.Errorf("pcm: read wav header: %w", err)
	}
	if string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE" || string(h.Subchunk2ID[:]) != "data" {
		return Format{}, nil, ErrNotWAV
	}
	if h.AudioFormat != 1 || h.BitsPerSample != Depth {
		return Format{}, nil, fmt.Errorf("%w: format=%d bits=%d", ErrNotWAV, h.AudioFormat, h.BitsPerSample)
	}
	f := Format{SampleRate: int(h.SampleRate), Channels: int(h.NumChannels)}
	if err := f.Validate(); err != nil {
		return Format{}, nil, err
	}
	payload := data[WAVHeaderSize:]
	if int(h.Subchunk2Size) < len(payload) {
		payload = payload[:h.Subchunk2Size]
	}
	return f, payload, nil
}
