package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
)

// stripCodeFence removes a surrounding markdown code fence, which some models
// emit around JSON even when asked not to.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// parseStringArray decodes a JSON array of strings, dropping blank entries.
func parseStringArray(text string) ([]string, error) {
	var raw []string
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse string array: %w", err)
	}

	items := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	return items, nil
}

type transcriptPayload struct {
	Transcript []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	} `json:"transcript"`
}

// parseTranscript decodes {"transcript":[{speaker,text}]} into validated turns.
// A single malformed turn rejects the whole transcript.
func parseTranscript(text string) ([]podcast.Turn, error) {
	var payload transcriptPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}

	turns := make([]podcast.Turn, 0, len(payload.Transcript))
	for i, raw := range payload.Transcript {
		turn, err := podcast.NewTurn(raw.Speaker, raw.Text)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}
