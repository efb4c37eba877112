package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
)

// Operation names, also used as metric labels.
const (
	OpOutline = "outline"
	OpExtend  = "extend"
	OpScript  = "script"
	OpSpeech  = "speech"
	OpTopics  = "topics"
)

// SchemaType is the JSON type of a response schema node.
type SchemaType string

const (
	TypeString SchemaType = "string"
	TypeArray  SchemaType = "array"
	TypeObject SchemaType = "object"
)

// Schema describes the JSON shape a text response must take.
type Schema struct {
	Type       SchemaType         `json:"type"`
	Items      *Schema            `json:"items,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
}

// TextRequest is a single prompt sent to a text model.
type TextRequest struct {
	Prompt string
	// Schema constrains the response to JSON of the given shape. Nil means free text.
	Schema *Schema
	// Grounding enables search-augmented generation where the backend supports it.
	Grounding bool
}

// TextResponse carries the model's answer and any citations it attached.
type TextResponse struct {
	Text    string
	Sources []podcast.Source
}

// TextModel generates text from a prompt.
type TextModel interface {
	GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error)
}

// SpeechRequest is a multi-speaker synthesis request.
type SpeechRequest struct {
	Prompt string
	Voices map[podcast.Speaker]string
}

// SpeechModel synthesizes headerless 16-bit LE mono PCM at 24 kHz.
type SpeechModel interface {
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// GenerationError wraps a provider failure together with its HTTP status, if known.
type GenerationError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s generation failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s generation failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsRateLimit reports whether err is a provider rate-limit rejection (HTTP 429).
func IsRateLimit(err error) bool {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// failureReason classifies err for metrics.
func failureReason(err error) string {
	switch {
	case IsRateLimit(err):
		return "rate_limit"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "provider"
	}
}

var (
	stringArraySchema = &Schema{
		Type:  TypeArray,
		Items: &Schema{Type: TypeString},
	}

	transcriptSchema = &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"transcript": {
				Type: TypeArray,
				Items: &Schema{
					Type: TypeObject,
					Properties: map[string]*Schema{
						"speaker": {Type: TypeString, Enum: []string{string(podcast.SpeakerJoe), string(podcast.SpeakerJane)}},
						"text":    {Type: TypeString},
					},
					Required: []string{"speaker", "text"},
				},
			},
		},
		Required: []string{"transcript"},
	}
)
