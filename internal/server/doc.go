// Package server exposes the podcast studio over HTTP: studio actions, saved
// session history, the genre catalogue, a WebSocket stream of state and audio
// events, plus /health and /metrics.
package server
