package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordGenerationRequest("script")
	m.RecordGenerationRequest("script")
	m.RecordGenerationRetry("script")
	m.RecordGenerationFailure("script", "rate_limit", 1.5)
	m.RecordSpeechChunk(48000, 1.0)
	m.RecordSpeechChunkFailure()
	m.RecordPipelineRun("partial", 42)
	m.SetActiveStudios(3)

	if got := testutil.ToFloat64(m.GenerationRequests.WithLabelValues("script")); got != 2 {
		t.Errorf("Expected 2 script requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.GenerationRetries.WithLabelValues("script")); got != 1 {
		t.Errorf("Expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.GenerationFailures.WithLabelValues("script", "rate_limit")); got != 1 {
		t.Errorf("Expected 1 rate limit failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.SpeechChunks); got != 1 {
		t.Errorf("Expected 1 speech chunk, got %v", got)
	}
	if got := testutil.ToFloat64(m.SpeechChunkFailures); got != 1 {
		t.Errorf("Expected 1 chunk failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.PipelineRuns.WithLabelValues("partial")); got != 1 {
		t.Errorf("Expected 1 partial run, got %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveStudios); got != 3 {
		t.Errorf("Expected 3 active studios, got %v", got)
	}
}

func TestMetricsSeparateRegistries(t *testing.T) {
	// Registering twice on one registry would panic; separate registries must not.
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordGenerationRequest("outline")
	m.RecordSpeechChunk(10, 1)
	m.RecordHTTPRequest("GET", "/health", "200", 0.01)
	m.StreamClientConnected()
}
