// Package store persists completed podcast sessions (topic, transcript, sources
// and WAV audio) in a local SQLite database and lists them most recent first.
package store
