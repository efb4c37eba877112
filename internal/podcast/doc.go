// Package podcast holds the episode data model shared by every other package.
// It defines speakers, turns, grounding sources and script results, validates
// provider payloads at the boundary, and builds the prompt text sent to the
// generative model for outlines, scripts, genre topics and speech synthesis.
package podcast
