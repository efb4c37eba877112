package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moriwaka/gemini-podcat-generator/internal/audio"
	"github.com/moriwaka/gemini-podcat-generator/internal/metrics"
	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
)

// AudioStatus is the outcome of audio generation for one episode.
type AudioStatus string

const (
	StatusNone    AudioStatus = "none"    // not attempted
	StatusSuccess AudioStatus = "success" // every chunk produced
	StatusPartial AudioStatus = "partial" // some chunks missing
	StatusFailed  AudioStatus = "failed"  // no chunk produced
)

// Progress bands shared with the studio: text generation runs 0..AudioStart,
// audio generation AudioStart..Complete.
const (
	ProgressStart       = 0
	ProgressScriptStart = 10
	ProgressAudioStart  = 40
	ProgressComplete    = 100
)

// DefaultChunkTurns is the number of turns sent per synthesis call.
const DefaultChunkTurns = 12

// Synthesizer turns one segment of turns into raw PCM, or nil when it fails.
type Synthesizer interface {
	GenerateAudioForSegment(ctx context.Context, turns []podcast.Turn) []byte
}

// Chunk is a synthesized segment placed on the playback timeline.
type Chunk struct {
	Index    int
	Total    int
	PCM      []byte
	Playback audio.ScheduledChunk
}

// Result summarizes one pipeline run.
type Result struct {
	Status         AudioStatus
	WAV            []byte // nil unless at least one chunk was produced
	PCMBytes       int
	ChunksTotal    int
	ChunksProduced int
	Elapsed        time.Duration
}

// Hooks receive pipeline events. Either field may be nil.
type Hooks struct {
	OnChunk    func(Chunk)
	OnProgress func(percent int)
}

// Pipeline synthesizes a transcript chunk by chunk, strictly in order.
type Pipeline struct {
	synth      Synthesizer
	chunkTurns int
	clock      func() audio.Clock

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a pipeline. chunkTurns outside 1.. falls back to DefaultChunkTurns.
func New(synth Synthesizer, chunkTurns int, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	if chunkTurns < 1 {
		chunkTurns = DefaultChunkTurns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		synth:      synth,
		chunkTurns: chunkTurns,
		clock:      audio.WallClock,
		logger:     logger,
		metrics:    m,
	}
}

// ChunkTurns returns the configured segment size
func (p *Pipeline) ChunkTurns() int {
	return p.chunkTurns
}

// SplitTurns slices turns into contiguous segments of at most size turns,
// preserving order. It yields ceil(len(turns)/size) segments.
func SplitTurns(turns []podcast.Turn, size int) [][]podcast.Turn {
	if size < 1 {
		size = 1
	}
	segments := make([][]podcast.Turn, 0, (len(turns)+size-1)/size)
	for start := 0; start < len(turns); start += size {
		end := start + size
		if end > len(turns) {
			end = len(turns)
		}
		segments = append(segments, turns[start:end:end])
	}
	return segments
}

// AudioProgress interpolates the audio band for done of total chunks.
func AudioProgress(done, total int) int {
	if total <= 0 {
		return ProgressComplete
	}
	return ProgressAudioStart + (ProgressComplete-ProgressAudioStart)*done/total
}

// Run synthesizes every segment sequentially. A missing chunk does not stop the
// run; the remaining chunks are still attempted and the status reflects how many
// were produced. Only context cancellation aborts early, in which case the
// chunks produced so far are returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, turns []podcast.Turn, hooks Hooks) (*Result, error) {
	startTime := time.Now()
	segments := SplitTurns(turns, p.chunkTurns)

	result := &Result{
		Status:      StatusNone,
		ChunksTotal: len(segments),
	}
	if len(segments) == 0 {
		return result, nil
	}

	acc := audio.NewAccumulator()
	scheduler := audio.NewScheduler(p.clock())

	p.logger.Info("Starting audio generation",
		slog.Int("turns", len(turns)),
		slog.Int("chunks", len(segments)),
		slog.Int("chunk_turns", p.chunkTurns),
	)

	for i, segment := range segments {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("Audio generation interrupted",
				slog.Int("chunk", i),
				slog.Int("chunks_produced", acc.Len()),
			)
			if ferr := p.finish(result, acc, startTime); ferr != nil {
				return nil, ferr
			}
			return result, fmt.Errorf("audio generation interrupted at chunk %d: %w", i, err)
		}

		pcm := p.synth.GenerateAudioForSegment(ctx, segment)
		if len(pcm) < audio.BytesPerSample {
			p.logger.Warn("Audio chunk missing, continuing",
				slog.Int("chunk", i),
				slog.Int("turns", len(segment)),
			)
		} else {
			if acc.Append(pcm) {
				p.logger.Warn("Dropped trailing odd byte from audio chunk", slog.Int("chunk", i))
			}
			stored := pcm[:len(pcm)/audio.BytesPerSample*audio.BytesPerSample]

			chunk := Chunk{
				Index:    i,
				Total:    len(segments),
				PCM:      stored,
				Playback: scheduler.Schedule(audio.PCMDuration(stored)),
			}
			if hooks.OnChunk != nil {
				hooks.OnChunk(chunk)
			}
		}

		if hooks.OnProgress != nil {
			hooks.OnProgress(AudioProgress(i+1, len(segments)))
		}
	}

	if err := p.finish(result, acc, startTime); err != nil {
		return nil, err
	}
	return result, nil
}

// finish fills result from the accumulated chunks and records the run.
func (p *Pipeline) finish(result *Result, acc *audio.Accumulator, startTime time.Time) error {
	result.ChunksProduced = acc.Len()
	result.PCMBytes = acc.Size()
	result.Status = statusFor(result.ChunksProduced, result.ChunksTotal)

	if result.ChunksProduced > 0 {
		wav, err := acc.WAV()
		if err != nil {
			return fmt.Errorf("failed to assemble WAV: %w", err)
		}
		result.WAV = wav
	}

	result.Elapsed = time.Since(startTime)
	p.metrics.RecordPipelineRun(string(result.Status), result.Elapsed.Seconds())

	stats := acc.GetStats()
	p.logger.Info("Audio generation finished",
		slog.String("status", string(result.Status)),
		slog.Int("chunks_produced", result.ChunksProduced),
		slog.Int("chunks_total", result.ChunksTotal),
		slog.Int("pcm_bytes", stats.TotalBytes),
		slog.Float64("audio_seconds", stats.Duration),
		slog.Duration("elapsed", result.Elapsed),
	)
	return nil
}

func statusFor(produced, total int) AudioStatus {
	switch {
	case total == 0:
		return StatusNone
	case produced == total:
		return StatusSuccess
	case produced == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
