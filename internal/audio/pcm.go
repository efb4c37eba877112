package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrDecode is returned when a base64 audio payload is malformed.
var ErrDecode = errors.New("audio decode error")

// DecodeBase64 decodes a standard base64 payload. The service itself receives
// provider audio already decoded; this is the listener's side of the
// pcm_base64 field on the live stream, kept next to EncodeBase64 so both ends
// share one codec.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// EncodeBase64 is the inverse of DecodeBase64.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Buffer is a decoded, playable chunk of mono audio.
type Buffer struct {
	Samples    []float32 // normalized to [-1, 1)
	SampleRate int
}

// Duration returns how long the buffer plays for.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// DecodeRawPCM interprets headerless 16-bit LE mono PCM at SampleRate.
// A trailing odd byte is ignored. It is what a stream listener does with a
// decoded chunk before scheduling it for playback.
func DecodeRawPCM(pcm []byte) *Buffer {
	n := len(pcm) / BytesPerSample
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768
	}
	return &Buffer{Samples: samples, SampleRate: SampleRate}
}

// PCMDuration returns the play time of a raw PCM payload without decoding it.
func PCMDuration(pcm []byte) time.Duration {
	return time.Duration(len(pcm)/BlockAlign) * time.Second / SampleRate
}
