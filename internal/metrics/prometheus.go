package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the podcast studio service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Generation metrics, labelled by operation (outline, extend, script, speech, topics)
	GenerationRequests *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	GenerationRetries  *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec

	// Speech pipeline metrics
	SpeechChunks        prometheus.Counter
	SpeechChunkFailures prometheus.Counter
	SpeechChunkSize     prometheus.Histogram
	SpeechChunkDuration prometheus.Histogram
	PipelineRuns        *prometheus.CounterVec
	PipelineDuration    prometheus.Histogram

	// Studio metrics
	ActiveStudios    prometheus.Gauge
	StudiosCreated   prometheus.Counter
	StudiosDestroyed prometheus.Counter
	StudioLifetime   prometheus.Histogram
	StreamClients    prometheus.Gauge

	// Session store metrics
	SessionsSaved   prometheus.Counter
	SessionsDeleted prometheus.Counter
	StoreErrors     *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with reg.
// A nil reg falls back to the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Generation metrics
		GenerationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podcast_generation_requests_total",
			Help: "Total number of generative model requests",
		}, []string{"operation"}),
		GenerationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podcast_generation_failures_total",
			Help: "Total number of generative model requests that failed after retries",
		}, []string{"operation", "reason"}),
		GenerationRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podcast_generation_retries_total",
			Help: "Total number of generative model request retries",
		}, []string{"operation"}),
		GenerationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podcast_generation_duration_seconds",
			Help:    "Duration of generative model requests including retries",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}, []string{"operation"}),

		// Speech pipeline metrics
		SpeechChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "podcast_speech_chunks_total",
			Help: "Total number of synthesized speech chunks",
		}),
		SpeechChunkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "podcast_speech_chunk_failures_total",
			Help: "Total number of speech chunks that produced no audio",
		}),
		SpeechChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "podcast_speech_chunk_size_bytes",
			Help:    "Size of synthesized PCM chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KB to ~8MB
		}),
		SpeechChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "podcast_speech_chunk_audio_seconds",
			Help:    "Playback length of synthesized speech chunks",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1s to ~4 minutes
		}),
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podcast_pipeline_runs_total",
			Help: "Total number of generation pipeline runs by audio outcome",
		}, []string{"status"}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "podcast_pipeline_duration_seconds",
			Help:    "End-to-end duration of generation pipeline runs",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8), // 5s to ~10 minutes
		}),

		// Studio metrics
		ActiveStudios: factory.NewGauge(prometheus.GaugeOpts{
			Name: "podcast_active_studios",
			Help: "Current number of live studios",
		}),
		StudiosCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "podcast_studios_created_total",
			Help: "Total number of studios created",
		}),
		StudiosDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Name: "podcast_studios_destroyed_total",
			Help: "Total number of studios destroyed",
		}),
		StudioLifetime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "podcast_studio_lifetime_seconds",
			Help:    "Lifetime of studios in seconds",
			Buckets: prometheus.ExponentialBuckets(60, 2, 8), // 1m to ~2 hours
		}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "podcast_stream_clients",
			Help: "Current number of connected studio stream clients",
		}),

		// Session store metrics
		SessionsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "podcast_sessions_saved_total",
			Help: "Total number of sessions persisted",
		}),
		SessionsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "podcast_sessions_deleted_total",
			Help: "Total number of sessions deleted",
		}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podcast_store_errors_total",
			Help: "Total number of session store errors",
		}, []string{"operation"}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podcast_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podcast_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "podcast_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordGenerationRequest increments the request counter for an operation
func (m *Metrics) RecordGenerationRequest(operation string) {
	if m == nil {
		return
	}
	m.GenerationRequests.WithLabelValues(operation).Inc()
}

// RecordGenerationSuccess records the duration of a successful request
func (m *Metrics) RecordGenerationSuccess(operation string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.GenerationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordGenerationFailure records a request that failed after all retries
func (m *Metrics) RecordGenerationFailure(operation, reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.GenerationFailures.WithLabelValues(operation, reason).Inc()
	m.GenerationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordGenerationRetry increments the retry counter for an operation
func (m *Metrics) RecordGenerationRetry(operation string) {
	if m == nil {
		return
	}
	m.GenerationRetries.WithLabelValues(operation).Inc()
}

// RecordSpeechChunk records a synthesized chunk
func (m *Metrics) RecordSpeechChunk(sizeBytes int, audioSeconds float64) {
	if m == nil {
		return
	}
	m.SpeechChunks.Inc()
	m.SpeechChunkSize.Observe(float64(sizeBytes))
	m.SpeechChunkDuration.Observe(audioSeconds)
}

// RecordSpeechChunkFailure increments the failed chunk counter
func (m *Metrics) RecordSpeechChunkFailure() {
	if m == nil {
		return
	}
	m.SpeechChunkFailures.Inc()
}

// RecordPipelineRun records a finished pipeline run
func (m *Metrics) RecordPipelineRun(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(durationSeconds)
}

// SetActiveStudios sets the current number of live studios
func (m *Metrics) SetActiveStudios(count int) {
	if m == nil {
		return
	}
	m.ActiveStudios.Set(float64(count))
}

// RecordStudioCreated increments the studios created counter
func (m *Metrics) RecordStudioCreated() {
	if m == nil {
		return
	}
	m.StudiosCreated.Inc()
}

// RecordStudioDestroyed increments the studios destroyed counter and records lifetime
func (m *Metrics) RecordStudioDestroyed(lifetimeSeconds float64) {
	if m == nil {
		return
	}
	m.StudiosDestroyed.Inc()
	m.StudioLifetime.Observe(lifetimeSeconds)
}

// StreamClientConnected increments the connected stream client gauge
func (m *Metrics) StreamClientConnected() {
	if m == nil {
		return
	}
	m.StreamClients.Inc()
}

// StreamClientDisconnected decrements the connected stream client gauge
func (m *Metrics) StreamClientDisconnected() {
	if m == nil {
		return
	}
	m.StreamClients.Dec()
}

// RecordSessionSaved increments the sessions saved counter
func (m *Metrics) RecordSessionSaved() {
	if m == nil {
		return
	}
	m.SessionsSaved.Inc()
}

// RecordSessionDeleted increments the sessions deleted counter
func (m *Metrics) RecordSessionDeleted() {
	if m == nil {
		return
	}
	m.SessionsDeleted.Inc()
}

// RecordStoreError increments the store error counter for an operation
func (m *Metrics) RecordStoreError(operation string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
