// Package generation talks to the external generative models.
//
// Client turns topics and outlines into outlines, transcripts and topic ideas
// through a TextModel, and transcript segments into raw PCM through a
// SpeechModel. Rate-limited calls (HTTP 429) are retried with exponential
// backoff; every other failure surfaces as a *GenerationError. Malformed JSON
// answers are degraded to empty results rather than returned as errors.
//
// Two backends are provided: GeminiBackend (text with search grounding, and
// multi-speaker speech) and OpenAIBackend (text only).
package generation
