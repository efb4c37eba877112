package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
)

func TestOpenAIBackendGenerateText(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Unexpected auth header %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "[\"Hook\",\"Wrap-up\"]"}, "finish_reason": "stop"}]
		}`)
	}))
	defer srv.Close()

	backend, err := NewOpenAIBackend(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("NewOpenAIBackend failed: %v", err)
	}

	resp, err := backend.GenerateText(context.Background(), TextRequest{Prompt: "outline please", Schema: stringArraySchema})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if resp.Text != `["Hook","Wrap-up"]` {
		t.Errorf("Unexpected text %q", resp.Text)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("OpenAI backend should not report sources, got %v", resp.Sources)
	}

	if gotBody["model"] != "gpt-test" {
		t.Errorf("Expected model gpt-test, got %v", gotBody["model"])
	}
	messages, _ := gotBody["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("Expected system and user messages, got %d", len(messages))
	}
	system, _ := messages[0].(map[string]any)
	if !strings.Contains(system["content"].(string), `"type":"array"`) {
		t.Errorf("Expected schema in system message, got %v", system["content"])
	}
}

func TestOpenAIBackendRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	backend, err := NewOpenAIBackend(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("NewOpenAIBackend failed: %v", err)
	}

	_, err = backend.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if !IsRateLimit(err) {
		t.Errorf("Expected rate limit error, got %v", err)
	}
}

func TestNewOpenAIBackendValidation(t *testing.T) {
	if _, err := NewOpenAIBackend(OpenAIConfig{Model: "gpt-test"}); err == nil {
		t.Error("Expected error for missing API key")
	}
	if _, err := NewOpenAIBackend(OpenAIConfig{APIKey: "sk"}); err == nil {
		t.Error("Expected error for missing model")
	}
}

func newGeminiTestBackend(t *testing.T, handler http.HandlerFunc) *GeminiBackend {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend, err := NewGeminiBackend(context.Background(), GeminiConfig{
		APIKey:    "test-key",
		TextModel: "gemini-test",
		TTSModel:  "gemini-tts-test",
		BaseURL:   srv.URL + "/",
	})
	if err != nil {
		t.Fatalf("NewGeminiBackend failed: %v", err)
	}
	return backend
}

func TestGeminiBackendGenerateTextWithGrounding(t *testing.T) {
	var gotBody map[string]any
	backend := newGeminiTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test") {
			t.Errorf("Expected text model in path, got %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "{\"transcript\": []}"}]},
				"groundingMetadata": {"groundingChunks": [
					{"web": {"uri": "https://example.com/a", "title": "A"}},
					{"web": {"uri": "", "title": "Empty"}}
				]}
			}]
		}`)
	})

	resp, err := backend.GenerateText(context.Background(), TextRequest{
		Prompt:    "script please",
		Schema:    transcriptSchema,
		Grounding: true,
	})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}

	if resp.Text != `{"transcript": []}` {
		t.Errorf("Unexpected text %q", resp.Text)
	}
	if len(resp.Sources) != 2 || resp.Sources[0].URI != "https://example.com/a" {
		t.Errorf("Unexpected sources %+v", resp.Sources)
	}

	if _, ok := gotBody["tools"]; !ok {
		t.Error("Expected search tool in request")
	}
}

func TestGeminiBackendSynthesize(t *testing.T) {
	pcm := []byte{0x00, 0x40, 0x00, 0xc0}
	backend := newGeminiTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-tts-test") {
			t.Errorf("Expected speech model in path, got %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "Puck") || !strings.Contains(string(body), "Kore") {
			t.Errorf("Expected both voices in request, got %s", body)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [
			{"inlineData": {"mimeType": "audio/L16;codec=pcm;rate=24000", "data": "`+base64.StdEncoding.EncodeToString(pcm)+`"}}
		]}}]}`)
	})

	got, err := backend.Synthesize(context.Background(), SpeechRequest{
		Prompt: "TTS conversation:\nJoe: hi",
		Voices: testVoices(),
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("Expected %v, got %v", pcm, got)
	}
}

func TestGeminiBackendRateLimit(t *testing.T) {
	backend := newGeminiTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": {"code": 429, "message": "Resource has been exhausted", "status": "RESOURCE_EXHAUSTED"}}`)
	})

	_, err := backend.Synthesize(context.Background(), SpeechRequest{Prompt: "x", Voices: testVoices()})
	if !IsRateLimit(err) {
		t.Errorf("Expected rate limit error, got %v", err)
	}
}

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(transcriptSchema)
	if s.Type != "OBJECT" {
		t.Errorf("Expected OBJECT, got %s", s.Type)
	}
	items := s.Properties["transcript"].Items
	if items == nil || items.Type != "OBJECT" {
		t.Fatalf("Expected object items, got %+v", items)
	}
	speaker := items.Properties["speaker"]
	if len(speaker.Enum) != 2 || speaker.Enum[0] != string(podcast.SpeakerJoe) {
		t.Errorf("Expected speaker enum, got %v", speaker.Enum)
	}
}
