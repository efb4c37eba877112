// Package pipeline turns a transcript into audio: it slices the turns into
// fixed-size segments, synthesizes them one at a time in order, streams each
// produced chunk with its playback offset, and merges the chunks into a WAV.
package pipeline
