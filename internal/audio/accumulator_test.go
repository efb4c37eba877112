package audio

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestDecodeBase64RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 2, 3, 57, 1024} {
		data := make([]byte, n)
		rng.Read(data)

		decoded, err := DecodeBase64(EncodeBase64(data))
		if err != nil {
			t.Fatalf("DecodeBase64 failed for %d bytes: %v", n, err)
		}
		if !bytes.Equal(decoded, data) {
			t.Errorf("Round trip mismatch for %d bytes", n)
		}
	}
}

func TestDecodeBase64Malformed(t *testing.T) {
	_, err := DecodeBase64("not*base64!")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestDecodeRawPCM(t *testing.T) {
	// 0, 16384, -32768, 32767 as little-endian int16
	pcm := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x80, 0xff, 0x7f}
	buf := DecodeRawPCM(pcm)

	if buf.SampleRate != SampleRate {
		t.Errorf("Expected sample rate %d, got %d", SampleRate, buf.SampleRate)
	}

	want := []float32{0, 0.5, -1, 32767.0 / 32768}
	if len(buf.Samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(buf.Samples))
	}
	for i, w := range want {
		if math.Abs(float64(buf.Samples[i]-w)) > 1e-6 {
			t.Errorf("Sample %d: expected %f, got %f", i, w, buf.Samples[i])
		}
	}
}

func TestDecodeRawPCMOddLength(t *testing.T) {
	buf := DecodeRawPCM([]byte{0x00, 0x40, 0x01})
	if len(buf.Samples) != 1 {
		t.Errorf("Expected trailing byte to be ignored, got %d samples", len(buf.Samples))
	}
}

func TestBufferDuration(t *testing.T) {
	buf := DecodeRawPCM(make([]byte, SampleRate*2)) // one second
	if buf.Duration() != time.Second {
		t.Errorf("Expected 1s, got %v", buf.Duration())
	}
	if PCMDuration(make([]byte, SampleRate)) != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", PCMDuration(make([]byte, SampleRate)))
	}
}

func TestAccumulatorAppend(t *testing.T) {
	acc := NewAccumulator()

	src := []byte{1, 2, 3, 4}
	if acc.Append(src) {
		t.Error("Even chunk should not be trimmed")
	}
	src[0] = 99 // accumulator must hold its own copy

	if !acc.Append([]byte{5, 6, 7}) {
		t.Error("Odd chunk should be trimmed")
	}

	if acc.Len() != 2 {
		t.Errorf("Expected 2 chunks, got %d", acc.Len())
	}
	if acc.Size() != 6 {
		t.Errorf("Expected 6 bytes, got %d", acc.Size())
	}

	want := []byte{1, 2, 3, 4, 5, 6}
	if got := acc.Merge(); !bytes.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	stats := acc.GetStats()
	if stats.Chunks != 2 || stats.TotalBytes != 6 || stats.TrimmedBytes != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	wavData, err := acc.WAV()
	if err != nil {
		t.Fatalf("WAV failed: %v", err)
	}
	if len(wavData) != WAVHeaderSize+6 {
		t.Errorf("Expected %d bytes, got %d", WAVHeaderSize+6, len(wavData))
	}
}

func TestAccumulatorReset(t *testing.T) {
	acc := NewAccumulator()
	acc.Append(make([]byte, 10))
	acc.Reset()

	if acc.Len() != 0 || acc.Size() != 0 {
		t.Errorf("Expected empty accumulator after reset, got %d chunks / %d bytes", acc.Len(), acc.Size())
	}
}
