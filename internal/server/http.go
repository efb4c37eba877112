package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moriwaka/gemini-podcat-generator/internal/config"
	"github.com/moriwaka/gemini-podcat-generator/internal/metrics"
	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
	"github.com/moriwaka/gemini-podcat-generator/internal/store"
	"github.com/moriwaka/gemini-podcat-generator/internal/studio"
)

const (
	serviceName    = "gemini-podcat-generator"
	serviceVersion = "1.0.0"

	maxBodyBytes = 1 << 20
)

// SessionStore is the saved-episode history
type SessionStore interface {
	GetAllSessions(ctx context.Context) ([]store.Session, error)
	GetSession(ctx context.Context, id string) (*store.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// TopicSuggester proposes topics for a genre
type TopicSuggester interface {
	GenerateGenreTopics(ctx context.Context, genre string, lang podcast.Language) ([]string, error)
}

// Options are the collaborators of the HTTP API.
type Options struct {
	Studios  *studio.Manager
	Sessions SessionStore
	Topics   TopicSuggester
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

// HTTPServer provides the podcast studio API plus health and metrics endpoints
type HTTPServer struct {
	server   *http.Server
	handler  http.Handler
	logger   *slog.Logger
	studios  *studio.Manager
	sessions SessionStore
	topics   TopicSuggester
	metrics  *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, opts Options) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		studios:   opts.Studios,
		sessions:  opts.Sessions,
		topics:    opts.Topics,
		metrics:   opts.Metrics,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux, opts.Gatherer)
	h.handler = mux

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.GetReadTimeoutDuration(),
		WriteTimeout: cfg.GetWriteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the routed handler, for tests and embedding
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	h.route(mux, "GET /health", h.handleHealth)

	// Studio workflow
	h.route(mux, "POST /studios", h.handleCreateStudio)
	h.route(mux, "GET /studios/{id}", h.handleGetStudio)
	h.route(mux, "DELETE /studios/{id}", h.handleDeleteStudio)
	h.route(mux, "POST /studios/{id}/language", h.handleSelectLanguage)
	h.route(mux, "POST /studios/{id}/genre", h.handleSelectGenre)
	h.route(mux, "GET /studios/{id}/topics", h.handleStudioTopics)
	h.route(mux, "PUT /studios/{id}/topic", h.handleEditTopic)
	h.route(mux, "POST /studios/{id}/topic", h.handleSubmitTopic)
	h.route(mux, "POST /studios/{id}/outline/extend", h.handleExtendOutline)
	h.route(mux, "POST /studios/{id}/outline/regenerate", h.handleRegenerateOutline)
	h.route(mux, "DELETE /studios/{id}/outline/{index}", h.handleDeletePoint)
	h.route(mux, "POST /studios/{id}/generate", h.handleGenerate)
	h.route(mux, "POST /studios/{id}/reset", h.handleReset)
	h.route(mux, "POST /studios/{id}/history/{sessionID}", h.handleOpenSession)
	h.route(mux, "GET /studios/{id}/audio", h.handleStudioAudio)
	h.route(mux, "GET /studios/{id}/stream", h.handleStream)

	// History
	h.route(mux, "GET /sessions", h.handleListSessions)
	h.route(mux, "GET /sessions/{id}", h.handleGetSession)
	h.route(mux, "GET /sessions/{id}/audio", h.handleSessionAudio)
	h.route(mux, "DELETE /sessions/{id}", h.handleDeleteSession)

	// Genre catalogue
	h.route(mux, "GET /genres", h.handleGenres)
	h.route(mux, "GET /genres/{genre}/topics", h.handleGenreTopics)

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	h.route(mux, "GET /{$}", h.handleRoot)
}

func (h *HTTPServer) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.HandleFunc(pattern, h.withMetrics(pattern, handler))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the stream endpoint upgrade through the metrics wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// ListenAndServe serves until Stop is called. A clean shutdown returns nil.
func (h *HTTPServer) ListenAndServe() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")
	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]any{
			"studio_manager": map[string]any{
				"status":         "running",
				"active_studios": h.studios.Count(),
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	apiDoc := map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"endpoints": map[string]string{
			"GET /":                                 "API documentation",
			"GET /health":                           "Service health check",
			"POST /studios":                         "Create a studio",
			"GET /studios/{id}":                     "Studio state",
			"DELETE /studios/{id}":                  "Drop a studio",
			"POST /studios/{id}/language":           "Select language {language}",
			"POST /studios/{id}/genre":              "Select genre {genre}",
			"GET /studios/{id}/topics?genre=":       "Suggest topics for a genre",
			"PUT /studios/{id}/topic":               "Edit the topic field {topic}",
			"POST /studios/{id}/topic":              "Submit a topic and generate an outline {topic}",
			"POST /studios/{id}/outline/extend":     "Add outline points",
			"POST /studios/{id}/outline/regenerate": "Replace the outline",
			"DELETE /studios/{id}/outline/{index}":  "Delete an outline point",
			"POST /studios/{id}/generate":           "Generate script and audio",
			"POST /studios/{id}/reset":              "Start a new episode",
			"POST /studios/{id}/history/{session}":  "Open a saved session",
			"GET /studios/{id}/audio":               "WAV of the current result",
			"GET /studios/{id}/stream":              "WebSocket of state and audio events",
			"GET /sessions":                         "Saved sessions, most recent first",
			"GET /sessions/{id}":                    "Saved session with transcript",
			"GET /sessions/{id}/audio":              "Saved session WAV",
			"DELETE /sessions/{id}":                 "Delete a saved session",
			"GET /genres?language=":                 "Genre catalogue",
			"GET /genres/{genre}/topics?language=":  "Suggest topics for a genre",
			"GET /metrics":                          "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.Error("Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, studio.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, studio.ErrNoAudio),
		errors.Is(err, store.ErrNoAudio):
		return http.StatusNotFound
	case errors.Is(err, studio.ErrBusy),
		errors.Is(err, studio.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, studio.ErrClosed):
		return http.StatusGone
	case errors.Is(err, studio.ErrEmptyTopic),
		errors.Is(err, studio.ErrEmptyOutline),
		errors.Is(err, studio.ErrIndexOutOfRange),
		errors.Is(err, studio.ErrUnknownGenre),
		errors.Is(err, podcast.ErrUnknownLanguage),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
