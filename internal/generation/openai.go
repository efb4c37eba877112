package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible text backend
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional; for self-hosted or compatible servers
	Model      string
	HTTPClient *http.Client
}

// OpenAIBackend generates text through an OpenAI-compatible chat completion API.
// It has no search grounding, so responses carry no sources.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates an OpenAI-compatible text backend
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key")
	}
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	} else {
		config.HTTPClient = &http.Client{Timeout: 180 * time.Second}
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}, nil
}

// GenerateText implements TextModel
func (o *OpenAIBackend) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to encode response schema: %w", err)
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Reply with JSON only, no prose and no code fences. The JSON must match this JSON Schema:\n" + string(schema),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return &TextResponse{}, nil
	}
	return &TextResponse{Text: resp.Choices[0].Message.Content}, nil
}

// wrapOpenAIError attaches the HTTP status of an API or transport error.
func wrapOpenAIError(err error) error {
	genErr := &GenerationError{Op: "text", Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		genErr.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		genErr.StatusCode = reqErr.HTTPStatusCode
	}
	return genErr
}
