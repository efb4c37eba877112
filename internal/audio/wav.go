package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Provider output format. These are fixed by the synthesis endpoint and never inferred.
const (
	SampleRate     = 24000
	NumChannels    = 1
	BitsPerSample  = 16
	BytesPerSample = BitsPerSample / 8
	BlockAlign     = NumChannels * BytesPerSample
	ByteRate       = SampleRate * BlockAlign
	WAVHeaderSize  = 44
)

// ErrOddLength is returned when a PCM payload does not hold a whole number of samples.
var ErrOddLength = errors.New("pcm payload length is not a multiple of the sample size")

// WAVHeader represents the header structure of a WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * BlockAlign
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// newWAVHeader builds the canonical header for a payload of dataSize bytes.
func newWAVHeader(dataSize uint32) WAVHeader {
	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   NumChannels,
		SampleRate:    SampleRate,
		ByteRate:      ByteRate,
		BlockAlign:    BlockAlign,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// PCMToWAV wraps raw 16-bit LE mono 24 kHz PCM in a 44-byte WAV header.
// The payload is copied unchanged; an empty payload yields a header-only file.
func PCMToWAV(pcm []byte) ([]byte, error) {
	if len(pcm)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrOddLength, len(pcm))
	}

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(pcm)))

	if err := binary.Write(buf, binary.LittleEndian, newWAVHeader(uint32(len(pcm)))); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// ValidateWAV validates a WAV file format without decoding the entire audio data
func ValidateWAV(data []byte) error {
	if len(data) < WAVHeaderSize {
		return fmt.Errorf("WAV data too short: need at least %d bytes, got %d", WAVHeaderSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if string(data[36:40]) != "data" {
		return fmt.Errorf("invalid WAV file: missing data chunk")
	}

	if declared := binary.LittleEndian.Uint32(data[40:44]); int(declared) != len(data)-WAVHeaderSize {
		return fmt.Errorf("invalid WAV file: data chunk declares %d bytes, found %d", declared, len(data)-WAVHeaderSize)
	}

	return nil
}

// WAVInfo describes a WAV file
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumSamples    uint32  `json:"num_samples"`
}

// GetWAVInfo extracts metadata from a WAV file
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	var header WAVHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if header.SampleRate == 0 || header.BitsPerSample == 0 || header.NumChannels == 0 {
		return nil, fmt.Errorf("invalid WAV header: zero sample rate, bit depth or channel count")
	}

	frameSize := uint32(header.BitsPerSample) / 8 * uint32(header.NumChannels)
	numSamples := header.Subchunk2Size / frameSize

	return &WAVInfo{
		SampleRate:    header.SampleRate,
		Channels:      header.NumChannels,
		BitsPerSample: header.BitsPerSample,
		Duration:      float64(numSamples) / float64(header.SampleRate),
		DataSize:      header.Subchunk2Size,
		NumSamples:    numSamples,
	}, nil
}
