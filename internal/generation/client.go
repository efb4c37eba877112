package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moriwaka/gemini-podcat-generator/internal/audio"
	"github.com/moriwaka/gemini-podcat-generator/internal/metrics"
	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
)

// Config contains generation client configuration
type Config struct {
	OutlinePoints  int
	ExtendPoints   int
	GenreTopics    int
	Retry          RetryPolicy
	RequestTimeout time.Duration
	Voices         map[podcast.Speaker]string
}

// Client issues outline, script, topic and speech requests and reshapes the
// answers into the podcast data model. Calls are not parallelized internally;
// callers sequence them.
type Client struct {
	text   TextModel
	speech SpeechModel

	outlinePoints  int
	extendPoints   int
	genreTopics    int
	voices         map[podcast.Speaker]string
	retry          RetryPolicy
	requestTimeout time.Duration
	sleep          sleepFunc

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a generation client over the given backends
func NewClient(text TextModel, speech SpeechModel, config Config, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	if text == nil {
		return nil, fmt.Errorf("text model cannot be nil")
	}
	if speech == nil {
		return nil, fmt.Errorf("speech model cannot be nil")
	}

	for _, sp := range podcast.Speakers {
		if config.Voices[sp] == "" {
			return nil, fmt.Errorf("no voice configured for speaker %s", sp)
		}
	}

	if config.OutlinePoints <= 0 {
		config.OutlinePoints = 6
	}
	if config.ExtendPoints <= 0 {
		config.ExtendPoints = 5
	}
	if config.GenreTopics <= 0 {
		config.GenreTopics = 6
	}
	if config.Retry.MaxRetries < 0 {
		config.Retry.MaxRetries = DefaultRetryPolicy.MaxRetries
	}
	if config.Retry.InitialBackoff <= 0 {
		config.Retry.InitialBackoff = DefaultRetryPolicy.InitialBackoff
	}

	if logger == nil {
		logger = slog.Default()
	}

	voices := make(map[podcast.Speaker]string, len(config.Voices))
	for sp, v := range config.Voices {
		voices[sp] = v
	}

	return &Client{
		text:           text,
		speech:         speech,
		outlinePoints:  config.OutlinePoints,
		extendPoints:   config.ExtendPoints,
		genreTopics:    config.GenreTopics,
		voices:         voices,
		retry:          config.Retry,
		requestTimeout: config.RequestTimeout,
		sleep:          sleepContext,
		logger:         logger,
		metrics:        m,
	}, nil
}

// GenerateOutline requests the episode outline. A response that cannot be parsed
// yields an empty outline and no error so the caller can prompt again.
func (c *Client) GenerateOutline(ctx context.Context, topic string, lang podcast.Language) ([]string, error) {
	prompt := podcast.OutlinePrompt(topic, c.outlinePoints, lang)
	return c.generateList(ctx, OpOutline, prompt)
}

// ExtendOutline requests additional points following the current outline. The
// caller appends the result.
func (c *Client) ExtendOutline(ctx context.Context, topic string, current []string, lang podcast.Language) ([]string, error) {
	prompt := podcast.ExtendOutlinePrompt(topic, current, c.extendPoints, lang)
	return c.generateList(ctx, OpExtend, prompt)
}

// GenerateGenreTopics suggests episode topics for a genre.
func (c *Client) GenerateGenreTopics(ctx context.Context, genre string, lang podcast.Language) ([]string, error) {
	prompt := podcast.GenreTopicsPrompt(genre, c.genreTopics, lang)
	return c.generateList(ctx, OpTopics, prompt)
}

func (c *Client) generateList(ctx context.Context, op, prompt string) ([]string, error) {
	resp, err := c.generateText(ctx, op, TextRequest{Prompt: prompt, Schema: stringArraySchema})
	if err != nil {
		return nil, err
	}

	items, err := parseStringArray(resp.Text)
	if err != nil {
		c.logger.Warn("Discarding malformed list response",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.Int("response_length", len(resp.Text)),
		)
		return []string{}, nil
	}
	return items, nil
}

// GenerateFullScript requests the complete two-speaker dialogue with search
// grounding. A malformed transcript yields an empty one; sources are kept.
func (c *Client) GenerateFullScript(ctx context.Context, topic string, outline []string, lang podcast.Language) (*podcast.ScriptResult, error) {
	prompt := podcast.FullScriptPrompt(topic, outline, lang)
	resp, err := c.generateText(ctx, OpScript, TextRequest{
		Prompt:    prompt,
		Schema:    transcriptSchema,
		Grounding: true,
	})
	if err != nil {
		return nil, err
	}

	result := &podcast.ScriptResult{
		Transcript: []podcast.Turn{},
		Sources:    podcast.FilterSources(resp.Sources),
	}

	turns, err := parseTranscript(resp.Text)
	if err != nil {
		c.logger.Warn("Discarding malformed transcript",
			slog.String("error", err.Error()),
			slog.Int("response_length", len(resp.Text)),
		)
		return result, nil
	}

	result.Transcript = turns
	c.logger.Info("Script generated",
		slog.Int("turns", len(turns)),
		slog.Int("sources", len(result.Sources)),
	)
	return result, nil
}

// GenerateAudioForSegment synthesizes one segment of turns. It returns nil for
// an empty segment or when synthesis fails, meaning the chunk is skipped.
func (c *Client) GenerateAudioForSegment(ctx context.Context, turns []podcast.Turn) []byte {
	if len(turns) == 0 {
		return nil
	}

	req := SpeechRequest{
		Prompt: podcast.SpeechPrompt(turns),
		Voices: c.voices,
	}

	c.metrics.RecordGenerationRequest(OpSpeech)
	startTime := time.Now()

	pcm, err := withRetry(ctx, c, OpSpeech, func(ctx context.Context) ([]byte, error) {
		return c.speech.Synthesize(ctx, req)
	})
	duration := time.Since(startTime)

	if err != nil {
		c.metrics.RecordGenerationFailure(OpSpeech, failureReason(err), duration.Seconds())
		c.metrics.RecordSpeechChunkFailure()
		c.logger.Error("Speech synthesis failed",
			slog.Int("turns", len(turns)),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return nil
	}

	if len(pcm) == 0 {
		c.metrics.RecordGenerationFailure(OpSpeech, "empty", duration.Seconds())
		c.metrics.RecordSpeechChunkFailure()
		c.logger.Warn("Speech synthesis returned no audio", slog.Int("turns", len(turns)))
		return nil
	}

	c.metrics.RecordGenerationSuccess(OpSpeech, duration.Seconds())
	c.metrics.RecordSpeechChunk(len(pcm), audio.PCMDuration(pcm).Seconds())
	c.logger.Debug("Speech segment synthesized",
		slog.Int("turns", len(turns)),
		slog.Int("bytes", len(pcm)),
		slog.Duration("duration", duration),
	)
	return pcm
}

// generateText runs a text request under the retry policy and records metrics.
func (c *Client) generateText(ctx context.Context, op string, req TextRequest) (*TextResponse, error) {
	c.metrics.RecordGenerationRequest(op)
	startTime := time.Now()

	resp, err := withRetry(ctx, c, op, func(ctx context.Context) (*TextResponse, error) {
		return c.text.GenerateText(ctx, req)
	})
	duration := time.Since(startTime)

	if err != nil {
		c.metrics.RecordGenerationFailure(op, failureReason(err), duration.Seconds())
		c.logger.Error("Text generation failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return nil, err
	}

	c.metrics.RecordGenerationSuccess(op, duration.Seconds())
	c.logger.Debug("Text generation completed",
		slog.String("operation", op),
		slog.Int("response_length", len(resp.Text)),
		slog.Duration("duration", duration),
	)
	return resp, nil
}
