package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/moriwaka/gemini-podcat-generator/internal/audio"
	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
)

// fakeSynth returns a distinct PCM payload per call, or nil for calls listed in fail.
type fakeSynth struct {
	segments [][]podcast.Turn
	fail     map[int]bool
	size     int
}

func (f *fakeSynth) GenerateAudioForSegment(ctx context.Context, turns []podcast.Turn) []byte {
	call := len(f.segments)
	f.segments = append(f.segments, turns)
	if f.fail[call] {
		return nil
	}
	size := f.size
	if size == 0 {
		size = 480 // 10ms
	}
	return bytes.Repeat([]byte{byte(call + 1)}, size)
}

func makeTurns(n int) []podcast.Turn {
	turns := make([]podcast.Turn, n)
	for i := range turns {
		sp := podcast.SpeakerJoe
		if i%2 == 1 {
			sp = podcast.SpeakerJane
		}
		turns[i] = podcast.Turn{Speaker: sp, Text: fmt.Sprintf("line %d", i)}
	}
	return turns
}

func newTestPipeline(synth Synthesizer, chunkTurns int) *Pipeline {
	p := New(synth, chunkTurns, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	// frozen playback clock: every chunk lands back to back from zero
	p.clock = func() audio.Clock { return func() time.Duration { return 0 } }
	return p
}

func TestSplitTurns(t *testing.T) {
	for total := 0; total <= 30; total++ {
		for size := 1; size <= 12; size++ {
			turns := makeTurns(total)
			segments := SplitTurns(turns, size)

			want := (total + size - 1) / size
			if len(segments) != want {
				t.Fatalf("T=%d C=%d: expected %d segments, got %d", total, size, want, len(segments))
			}

			// concatenation reproduces the transcript exactly
			var flat []podcast.Turn
			for _, seg := range segments {
				if len(seg) == 0 || len(seg) > size {
					t.Fatalf("T=%d C=%d: bad segment length %d", total, size, len(seg))
				}
				flat = append(flat, seg...)
			}
			if len(flat) != total {
				t.Fatalf("T=%d C=%d: expected %d turns, got %d", total, size, total, len(flat))
			}
			for i := range flat {
				if flat[i] != turns[i] {
					t.Fatalf("T=%d C=%d: turn %d out of order", total, size, i)
				}
			}
		}
	}
}

func TestSplitTurnsSegmentsDoNotAlias(t *testing.T) {
	turns := makeTurns(4)
	segments := SplitTurns(turns, 2)

	segments[0] = append(segments[0], podcast.Turn{Speaker: podcast.SpeakerJoe, Text: "extra"})
	if turns[2].Text != "line 2" {
		t.Error("Appending to a segment must not overwrite the next one")
	}
}

func TestRunEightTurnsChunkFive(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPipeline(synth, 5)

	var progress []int
	var chunks []Chunk
	result, err := p.Run(context.Background(), makeTurns(8), Hooks{
		OnChunk:    func(c Chunk) { chunks = append(chunks, c) },
		OnProgress: func(pct int) { progress = append(progress, pct) },
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(synth.segments) != 2 {
		t.Fatalf("Expected 2 synthesis calls, got %d", len(synth.segments))
	}
	if len(synth.segments[0]) != 5 || len(synth.segments[1]) != 3 {
		t.Errorf("Expected segments of 5 and 3 turns, got %d and %d", len(synth.segments[0]), len(synth.segments[1]))
	}
	if synth.segments[1][0].Text != "line 5" {
		t.Errorf("Second segment should start at turn 5, got %q", synth.segments[1][0].Text)
	}

	if result.Status != StatusSuccess {
		t.Errorf("Expected success, got %s", result.Status)
	}
	if result.ChunksProduced != 2 || result.ChunksTotal != 2 {
		t.Errorf("Expected 2/2 chunks, got %d/%d", result.ChunksProduced, result.ChunksTotal)
	}
	if len(result.WAV) != audio.WAVHeaderSize+960 {
		t.Errorf("Expected WAV of %d bytes, got %d", audio.WAVHeaderSize+960, len(result.WAV))
	}
	if err := audio.ValidateWAV(result.WAV); err != nil {
		t.Errorf("Invalid WAV: %v", err)
	}
	// chunk order preserved in the payload
	if result.WAV[audio.WAVHeaderSize] != 1 || result.WAV[len(result.WAV)-1] != 2 {
		t.Error("Chunks merged out of order")
	}

	if len(progress) != 2 || progress[0] != 70 || progress[1] != 100 {
		t.Errorf("Expected progress [70 100], got %v", progress)
	}

	if len(chunks) != 2 {
		t.Fatalf("Expected 2 streamed chunks, got %d", len(chunks))
	}
	if chunks[0].Playback.Start != 0 || chunks[1].Playback.Start != 10*time.Millisecond {
		t.Errorf("Expected gapless playback at 0 and 10ms, got %v and %v",
			chunks[0].Playback.Start, chunks[1].Playback.Start)
	}
}

func TestRunPartialAndFailed(t *testing.T) {
	tests := []struct {
		name       string
		fail       map[int]bool
		wantStatus AudioStatus
		wantBytes  int
		wantWAV    bool
	}{
		{name: "all succeed", fail: nil, wantStatus: StatusSuccess, wantBytes: 3 * 480, wantWAV: true},
		{name: "middle fails", fail: map[int]bool{1: true}, wantStatus: StatusPartial, wantBytes: 2 * 480, wantWAV: true},
		{name: "first fails", fail: map[int]bool{0: true}, wantStatus: StatusPartial, wantBytes: 2 * 480, wantWAV: true},
		{name: "all fail", fail: map[int]bool{0: true, 1: true, 2: true}, wantStatus: StatusFailed, wantBytes: 0, wantWAV: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &fakeSynth{fail: tt.fail}
			p := newTestPipeline(synth, 5)

			result, err := p.Run(context.Background(), makeTurns(12), Hooks{})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			// every chunk is attempted regardless of failures
			if len(synth.segments) != 3 {
				t.Errorf("Expected 3 synthesis calls, got %d", len(synth.segments))
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, result.Status)
			}
			if result.PCMBytes != tt.wantBytes {
				t.Errorf("Expected %d PCM bytes, got %d", tt.wantBytes, result.PCMBytes)
			}
			if (result.WAV != nil) != tt.wantWAV {
				t.Errorf("Expected WAV present=%v, got %d bytes", tt.wantWAV, len(result.WAV))
			}
		})
	}
}

func TestRunEmptyTranscript(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPipeline(synth, 5)

	result, err := p.Run(context.Background(), nil, Hooks{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != StatusNone {
		t.Errorf("Expected none, got %s", result.Status)
	}
	if len(synth.segments) != 0 {
		t.Errorf("Expected no synthesis calls, got %d", len(synth.segments))
	}
}

func TestRunOddLengthChunk(t *testing.T) {
	synth := &fakeSynth{size: 481}
	p := newTestPipeline(synth, 5)

	var streamed []Chunk
	result, err := p.Run(context.Background(), makeTurns(3), Hooks{
		OnChunk: func(c Chunk) { streamed = append(streamed, c) },
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.PCMBytes != 480 {
		t.Errorf("Expected trailing byte dropped, got %d bytes", result.PCMBytes)
	}
	if len(streamed) != 1 || len(streamed[0].PCM) != 480 {
		t.Errorf("Expected streamed chunk of 480 bytes, got %+v", streamed)
	}
}

func TestRunCanceled(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPipeline(synth, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, makeTurns(8), Hooks{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(synth.segments) != 0 {
		t.Errorf("Expected no synthesis after cancellation, got %d", len(synth.segments))
	}
	if result == nil || result.Status != StatusFailed || result.WAV != nil {
		t.Errorf("Expected failed result without audio, got %+v", result)
	}
}

func TestRunCanceledKeepsProducedChunks(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPipeline(synth, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var chunks []Chunk
	result, err := p.Run(ctx, makeTurns(12), Hooks{
		OnChunk: func(c Chunk) {
			chunks = append(chunks, c)
			cancel()
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if result == nil {
		t.Fatal("Expected partial result alongside the error")
	}

	if len(synth.segments) != 1 || len(chunks) != 1 {
		t.Errorf("Expected one synthesized chunk, got %d calls and %d chunks", len(synth.segments), len(chunks))
	}
	if result.Status != StatusPartial {
		t.Errorf("Expected %s, got %s", StatusPartial, result.Status)
	}
	if result.ChunksProduced != 1 || result.ChunksTotal != 3 {
		t.Errorf("Expected 1 of 3 chunks, got %d of %d", result.ChunksProduced, result.ChunksTotal)
	}
	if err := audio.ValidateWAV(result.WAV); err != nil {
		t.Fatalf("Partial WAV invalid: %v", err)
	}
	if len(result.WAV) != 44+480 {
		t.Errorf("Expected header plus one chunk, got %d bytes", len(result.WAV))
	}
}

func TestAudioProgress(t *testing.T) {
	prev := ProgressAudioStart
	for done := 0; done <= 7; done++ {
		got := AudioProgress(done, 7)
		if got < prev {
			t.Errorf("Progress decreased: %d -> %d", prev, got)
		}
		prev = got
	}
	if AudioProgress(0, 7) != ProgressAudioStart {
		t.Errorf("Expected %d at start, got %d", ProgressAudioStart, AudioProgress(0, 7))
	}
	if AudioProgress(7, 7) != ProgressComplete {
		t.Errorf("Expected %d at end, got %d", ProgressComplete, AudioProgress(7, 7))
	}
}

func TestNewDefaultsChunkTurns(t *testing.T) {
	p := New(&fakeSynth{}, 0, nil, nil)
	if p.ChunkTurns() != DefaultChunkTurns {
		t.Errorf("Expected default %d, got %d", DefaultChunkTurns, p.ChunkTurns())
	}
}
