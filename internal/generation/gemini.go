package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
)

// GeminiConfig configures the Gemini backend
type GeminiConfig struct {
	APIKey     string
	TextModel  string
	TTSModel   string
	BaseURL    string // optional; overrides the Gemini API endpoint
	HTTPClient *http.Client
}

// GeminiBackend serves text, grounding and speech through the Gemini API.
type GeminiBackend struct {
	client    *genai.Client
	textModel string
	ttsModel  string
}

// NewGeminiBackend creates a Gemini API client
func NewGeminiBackend(ctx context.Context, config GeminiConfig) (*GeminiBackend, error) {
	if config.APIKey == "" {
		return nil, errors.New("missing API key")
	}
	if config.TextModel == "" || config.TTSModel == "" {
		return nil, errors.New("text and speech model names are required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: config.HTTPClient,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiBackend{
		client:    client,
		textModel: config.TextModel,
		ttsModel:  config.TTSModel,
	}, nil
}

// GenerateText implements TextModel
func (g *GeminiBackend) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	config := &genai.GenerateContentConfig{}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGenaiSchema(req.Schema)
	}
	if req.Grounding {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.textModel, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, wrapGeminiError("text", err)
	}

	return &TextResponse{
		Text:    responseText(resp),
		Sources: groundingSources(resp),
	}, nil
}

// Synthesize implements SpeechModel
func (g *GeminiBackend) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	speakers := make([]*genai.SpeakerVoiceConfig, 0, len(podcast.Speakers))
	for _, sp := range podcast.Speakers {
		speakers = append(speakers, &genai.SpeakerVoiceConfig{
			Speaker: string(sp),
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: req.Voices[sp]},
			},
		})
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			MultiSpeakerVoiceConfig: &genai.MultiSpeakerVoiceConfig{
				SpeakerVoiceConfigs: speakers,
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.ttsModel, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, wrapGeminiError("speech", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}
	return nil, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func groundingSources(resp *genai.GenerateContentResponse) []podcast.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	chunks := resp.Candidates[0].GroundingMetadata.GroundingChunks
	sources := make([]podcast.Source, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = append(sources, podcast.Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return sources
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Items:    toGenaiSchema(s.Items),
		Required: s.Required,
		Enum:     s.Enum,
	}
	switch s.Type {
	case TypeString:
		out.Type = genai.TypeString
	case TypeArray:
		out.Type = genai.TypeArray
	case TypeObject:
		out.Type = genai.TypeObject
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

// wrapGeminiError attaches the HTTP status of a Gemini API error.
func wrapGeminiError(op string, err error) error {
	genErr := &GenerationError{Op: op, Err: err}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		genErr.StatusCode = apiErr.Code
	case errors.As(err, &apiErrPtr):
		genErr.StatusCode = apiErrPtr.Code
	}
	return genErr
}
