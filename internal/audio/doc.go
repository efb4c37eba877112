// Package audio handles the raw speech audio returned by the synthesis provider.
// It interprets 16-bit little-endian mono samples at 24 kHz, accumulates
// per-segment chunks in production order, wraps the merged payload in a
// canonical WAV container, and schedules gap-free sequential playback.
//
// The base64 codec and DecodeRawPCM describe the live stream's chunk format
// from the listener's end: EncodeBase64 produces pcm_base64 on the server and
// DecodeBase64 plus DecodeRawPCM turn it back into playable samples.
package audio
