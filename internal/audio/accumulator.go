package audio

import (
	"sync"
)

// Accumulator collects raw PCM chunks in production order for final WAV assembly.
type Accumulator struct {
	chunks [][]byte
	total  int

	// bytes dropped to keep chunks sample-aligned
	trimmed int

	mu sync.RWMutex
}

// AccumulatorStats represents accumulator statistics for monitoring
type AccumulatorStats struct {
	Chunks       int     `json:"chunks"`
	TotalBytes   int     `json:"total_bytes"`
	TrimmedBytes int     `json:"trimmed_bytes"`
	Duration     float64 `json:"duration_seconds"`
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Append stores a copy of chunk. A trailing odd byte is dropped so every stored
// chunk holds whole samples; the return value reports whether that happened.
func (a *Accumulator) Append(chunk []byte) (trimmed bool) {
	if len(chunk)%BytesPerSample != 0 {
		chunk = chunk[:len(chunk)-1]
		trimmed = true
	}

	stored := make([]byte, len(chunk))
	copy(stored, chunk)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.chunks = append(a.chunks, stored)
	a.total += len(stored)
	if trimmed {
		a.trimmed++
	}
	return trimmed
}

// Len returns the number of chunks collected
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.chunks)
}

// Size returns the total payload size in bytes
func (a *Accumulator) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total
}

// Merge concatenates every chunk in the order it was appended.
func (a *Accumulator) Merge() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()

	merged := make([]byte, 0, a.total)
	for _, c := range a.chunks {
		merged = append(merged, c...)
	}
	return merged
}

// WAV merges the collected chunks and wraps them in a WAV container.
func (a *Accumulator) WAV() ([]byte, error) {
	return PCMToWAV(a.Merge())
}

// Reset discards all collected chunks
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = nil
	a.total = 0
	a.trimmed = 0
}

// GetStats returns accumulator statistics
func (a *Accumulator) GetStats() AccumulatorStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return AccumulatorStats{
		Chunks:       len(a.chunks),
		TotalBytes:   a.total,
		TrimmedBytes: a.trimmed,
		Duration:     float64(a.total/BlockAlign) / SampleRate,
	}
}
