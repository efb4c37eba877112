package podcast

import (
	"errors"
	"fmt"
	"strings"
)

// Speaker identifies one of the two fixed hosts.
type Speaker string

const (
	SpeakerJoe  Speaker = "Joe"  // the questioner
	SpeakerJane Speaker = "Jane" // the explainer
)

// Speakers lists every valid speaker in a stable order.
var Speakers = []Speaker{SpeakerJoe, SpeakerJane}

// Language is the episode language tag.
type Language string

const (
	LanguageJapanese Language = "ja"
	LanguageEnglish  Language = "en"
)

// DefaultLanguage is used when a studio is created.
const DefaultLanguage = LanguageJapanese

var (
	// ErrUnknownSpeaker is returned for a speaker that is not one of the two hosts.
	ErrUnknownSpeaker = errors.New("unknown speaker")
	// ErrEmptyTurn is returned for a turn whose text is blank.
	ErrEmptyTurn = errors.New("empty turn text")
	// ErrUnknownLanguage is returned for an unsupported language tag.
	ErrUnknownLanguage = errors.New("unknown language")
)

// Turn is one utterance by one speaker.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Source is a grounding citation attached to generated text.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ScriptResult is the outcome of one full-script generation.
type ScriptResult struct {
	Transcript []Turn   `json:"transcript"`
	Sources    []Source `json:"sources"`
}

// ParseSpeaker validates a raw speaker name.
func ParseSpeaker(s string) (Speaker, error) {
	switch Speaker(strings.TrimSpace(s)) {
	case SpeakerJoe:
		return SpeakerJoe, nil
	case SpeakerJane:
		return SpeakerJane, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSpeaker, s)
}

// NewTurn builds a validated turn.
func NewTurn(speaker, text string) (Turn, error) {
	sp, err := ParseSpeaker(speaker)
	if err != nil {
		return Turn{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, fmt.Errorf("%w for speaker %s", ErrEmptyTurn, sp)
	}
	return Turn{Speaker: sp, Text: text}, nil
}

// ValidateTranscript checks every turn and returns the first problem found.
func ValidateTranscript(turns []Turn) error {
	for i, t := range turns {
		if _, err := NewTurn(string(t.Speaker), t.Text); err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}
	}
	return nil
}

// ParseLanguage validates a language tag. An empty tag yields DefaultLanguage.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultLanguage, nil
	case LanguageJapanese:
		return LanguageJapanese, nil
	case LanguageEnglish:
		return LanguageEnglish, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
}

// Label returns the human-readable language name used inside prompts.
func (l Language) Label() string {
	if l == LanguageJapanese {
		return "Japanese"
	}
	return "English"
}

// FilterSources keeps sources that carry a reference URI, defaulting blank titles.
func FilterSources(in []Source) []Source {
	out := make([]Source, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s.URI) == "" {
			continue
		}
		if strings.TrimSpace(s.Title) == "" {
			s.Title = "Source"
		}
		out = append(out, s)
	}
	return out
}
