package studio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moriwaka/gemini-podcat-generator/internal/pipeline"
	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
	"github.com/moriwaka/gemini-podcat-generator/internal/store"
)

// Step is one of the four screens of the studio flow.
type Step string

const (
	StepInput      Step = "input"
	StepOutline    Step = "outline"
	StepGenerating Step = "generating"
	StepResult     Step = "result"
)

// Phase says what a generating studio is waiting for, and so where it lands.
type Phase string

const (
	PhaseNone       Phase = ""
	PhaseOutline    Phase = "outline"    // first outline, from input
	PhaseRegenerate Phase = "regenerate" // replacement outline, from outline
	PhaseExtend     Phase = "extend"     // more points, from outline
	PhaseScript     Phase = "script"
	PhaseAudio      Phase = "audio"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrEmptyOutline      = errors.New("outline has no points")
	ErrEmptyTopic        = errors.New("topic cannot be empty")
	ErrIndexOutOfRange   = errors.New("outline index out of range")
	ErrUnknownGenre      = errors.New("unknown genre")
)

// State is an immutable snapshot of a studio. Reduce never mutates its input;
// slices held by a State are replaced, never written in place.
type State struct {
	Step        Step                 `json:"step"`
	Phase       Phase                `json:"phase,omitempty"`
	Language    podcast.Language     `json:"language"`
	Genre       string               `json:"genre,omitempty"`
	Topic       string               `json:"topic"`
	Outline     []string             `json:"outline"`
	Progress    int                  `json:"progress"`
	Transcript  []podcast.Turn       `json:"transcript"`
	Sources     []podcast.Source     `json:"sources"`
	AudioStatus pipeline.AudioStatus `json:"audio_status"`
	SessionID   string               `json:"session_id,omitempty"`
	// Alert is a blocking notice for the user, e.g. a failed outline request.
	Alert string `json:"alert,omitempty"`
	// Error explains a failed or partial result.
	Error string `json:"error,omitempty"`

	// Audio is the merged WAV of the current result, if any.
	Audio []byte `json:"-"`
}

// Initial returns the state of a fresh studio.
func Initial(lang podcast.Language) State {
	return State{
		Step:        StepInput,
		Language:    lang,
		Outline:     []string{},
		Transcript:  []podcast.Turn{},
		Sources:     []podcast.Source{},
		AudioStatus: pipeline.StatusNone,
	}
}

// HasAudio reports whether the state carries playable audio.
func (s State) HasAudio() bool {
	return len(s.Audio) > 0
}

// Event is an input to Reduce.
type Event interface {
	eventName() string
}

// User-initiated events.
type (
	LanguageSelected    struct{ Language podcast.Language }
	GenreSelected       struct{ Genre string }
	TopicEdited         struct{ Topic string }
	TopicSubmitted      struct{ Topic string }
	PointDeleted        struct{ Index int }
	ExtendRequested     struct{}
	RegenerateRequested struct{}
	GenerateRequested   struct{}
	SessionOpened       struct{ Session store.Session }
	NewEpisode          struct{}
)

// Events produced by generation work.
type (
	OutlineGenerated struct{ Points []string }
	OutlineExtended  struct{ Points []string }
	OutlineFailed    struct{ Reason string }
	ProgressUpdated  struct{ Percent int }
	ScriptGenerated  struct{ Result podcast.ScriptResult }
	ScriptFailed     struct{ Reason string }
	AudioGenerated   struct {
		Status    pipeline.AudioStatus
		Audio     []byte
		SessionID string
	}
	AudioFailed struct{ Reason string }
)

func (LanguageSelected) eventName() string    { return "language_selected" }
func (GenreSelected) eventName() string       { return "genre_selected" }
func (TopicEdited) eventName() string         { return "topic_edited" }
func (TopicSubmitted) eventName() string      { return "topic_submitted" }
func (PointDeleted) eventName() string        { return "point_deleted" }
func (ExtendRequested) eventName() string     { return "extend_requested" }
func (RegenerateRequested) eventName() string { return "regenerate_requested" }
func (GenerateRequested) eventName() string   { return "generate_requested" }
func (SessionOpened) eventName() string       { return "session_opened" }
func (NewEpisode) eventName() string          { return "new_episode" }
func (OutlineGenerated) eventName() string    { return "outline_generated" }
func (OutlineExtended) eventName() string     { return "outline_extended" }
func (OutlineFailed) eventName() string       { return "outline_failed" }
func (ProgressUpdated) eventName() string     { return "progress_updated" }
func (ScriptGenerated) eventName() string     { return "script_generated" }
func (ScriptFailed) eventName() string        { return "script_failed" }
func (AudioGenerated) eventName() string      { return "audio_generated" }
func (AudioFailed) eventName() string         { return "audio_failed" }

// Alert and error texts shown to the user.
const (
	alertOutlineFailed = "Could not generate an outline. Please try again."
	alertOutlineEmpty  = "The outline came back empty. Please try again."
	alertExtendEmpty   = "No additional points were generated."
	errScriptEmpty     = "The script came back empty."
	errAudioFailed     = "No audio could be generated."
	errAudioPartial    = "Some audio segments could not be generated."
)

// Reduce returns the state that follows s after ev. It is pure: s is left
// untouched, and an error leaves the caller's state as it was.
func Reduce(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case LanguageSelected:
		if err := expect(s, ev, StepInput); err != nil {
			return s, err
		}
		lang, err := podcast.ParseLanguage(string(e.Language))
		if err != nil {
			return s, err
		}
		s.Language = lang
		s.Genre = ""
		s.Alert = ""
		return s, nil

	case GenreSelected:
		if err := expect(s, ev, StepInput); err != nil {
			return s, err
		}
		if e.Genre != "" && !podcast.IsGenre(s.Language, e.Genre) {
			return s, fmt.Errorf("%w: %q", ErrUnknownGenre, e.Genre)
		}
		s.Genre = e.Genre
		s.Alert = ""
		return s, nil

	case TopicEdited:
		if err := expect(s, ev, StepInput); err != nil {
			return s, err
		}
		s.Topic = e.Topic
		return s, nil

	case TopicSubmitted:
		if err := expect(s, ev, StepInput); err != nil {
			return s, err
		}
		topic := strings.TrimSpace(e.Topic)
		if topic == "" {
			return s, ErrEmptyTopic
		}
		s.Topic = topic
		s.Outline = []string{}
		s.Alert = ""
		return generating(s, PhaseOutline), nil

	case OutlineGenerated:
		if err := expectPhase(s, ev, PhaseOutline, PhaseRegenerate); err != nil {
			return s, err
		}
		if len(e.Points) == 0 {
			return outlineFailed(s, alertOutlineEmpty), nil
		}
		s.Outline = podcast.CloneOutline(e.Points)
		return settle(s, StepOutline), nil

	case OutlineExtended:
		if err := expectPhase(s, ev, PhaseExtend); err != nil {
			return s, err
		}
		if len(e.Points) == 0 {
			s = settle(s, StepOutline)
			s.Alert = alertExtendEmpty
			return s, nil
		}
		s.Outline = podcast.AppendPoints(s.Outline, e.Points)
		return settle(s, StepOutline), nil

	case OutlineFailed:
		if err := expectPhase(s, ev, PhaseOutline, PhaseRegenerate, PhaseExtend); err != nil {
			return s, err
		}
		reason := e.Reason
		if reason == "" {
			reason = alertOutlineFailed
		}
		return outlineFailed(s, reason), nil

	case PointDeleted:
		if err := expect(s, ev, StepOutline); err != nil {
			return s, err
		}
		outline, err := podcast.DeletePoint(s.Outline, e.Index)
		if err != nil {
			return s, fmt.Errorf("%w: %v", ErrIndexOutOfRange, err)
		}
		s.Outline = outline
		s.Alert = ""
		return s, nil

	case ExtendRequested:
		if err := expect(s, ev, StepOutline); err != nil {
			return s, err
		}
		s.Alert = ""
		return generating(s, PhaseExtend), nil

	case RegenerateRequested:
		if err := expect(s, ev, StepOutline); err != nil {
			return s, err
		}
		s.Alert = ""
		return generating(s, PhaseRegenerate), nil

	case GenerateRequested:
		if err := expect(s, ev, StepOutline); err != nil {
			return s, err
		}
		if len(s.Outline) == 0 {
			return s, ErrEmptyOutline
		}
		s.Alert = ""
		s.Transcript = []podcast.Turn{}
		s.Sources = []podcast.Source{}
		s.Audio = nil
		s.SessionID = ""
		s.Error = ""
		s.AudioStatus = pipeline.StatusNone
		return generating(s, PhaseScript), nil

	case ProgressUpdated:
		if err := expectPhase(s, ev, PhaseScript, PhaseAudio); err != nil {
			return s, err
		}
		// progress never moves backwards
		if e.Percent > s.Progress {
			s.Progress = min(e.Percent, pipeline.ProgressComplete)
		}
		return s, nil

	case ScriptGenerated:
		if err := expectPhase(s, ev, PhaseScript); err != nil {
			return s, err
		}
		s.Transcript = append([]podcast.Turn{}, e.Result.Transcript...)
		s.Sources = append([]podcast.Source{}, e.Result.Sources...)
		if len(s.Transcript) == 0 {
			s = settle(s, StepResult)
			s.AudioStatus = pipeline.StatusFailed
			s.Error = errScriptEmpty
			return s, nil
		}
		s.Phase = PhaseAudio
		s.Progress = max(s.Progress, pipeline.ProgressAudioStart)
		return s, nil

	case ScriptFailed:
		if err := expectPhase(s, ev, PhaseScript); err != nil {
			return s, err
		}
		s = settle(s, StepResult)
		s.AudioStatus = pipeline.StatusFailed
		s.Error = e.Reason
		return s, nil

	case AudioGenerated:
		if err := expectPhase(s, ev, PhaseAudio); err != nil {
			return s, err
		}
		s = settle(s, StepResult)
		s.Progress = pipeline.ProgressComplete
		s.AudioStatus = e.Status
		s.SessionID = e.SessionID
		if e.Status == pipeline.StatusSuccess || e.Status == pipeline.StatusPartial {
			s.Audio = e.Audio
		}
		switch e.Status {
		case pipeline.StatusFailed:
			s.Error = errAudioFailed
		case pipeline.StatusPartial:
			s.Error = errAudioPartial
		}
		return s, nil

	case AudioFailed:
		if err := expectPhase(s, ev, PhaseAudio); err != nil {
			return s, err
		}
		s = settle(s, StepResult)
		s.AudioStatus = pipeline.StatusFailed
		s.Error = e.Reason
		return s, nil

	case SessionOpened:
		if err := expect(s, ev, StepInput, StepOutline, StepResult); err != nil {
			return s, err
		}
		sess := e.Session
		next := Initial(s.Language)
		if sess.Language != "" {
			next.Language = sess.Language
		}
		next.Step = StepResult
		next.Topic = sess.Topic
		next.Transcript = append([]podcast.Turn{}, sess.Transcript...)
		next.Sources = append([]podcast.Source{}, sess.Sources...)
		next.Audio = sess.Audio
		next.SessionID = sess.ID
		next.Progress = pipeline.ProgressComplete
		next.AudioStatus = pipeline.StatusSuccess
		return next, nil

	case NewEpisode:
		if err := expect(s, ev, StepResult); err != nil {
			return s, err
		}
		return Initial(s.Language), nil
	}

	return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
}

func expect(s State, ev Event, steps ...Step) error {
	for _, step := range steps {
		if s.Step == step {
			return nil
		}
	}
	return fmt.Errorf("%w: %s in step %s", ErrInvalidTransition, ev.eventName(), s.Step)
}

func expectPhase(s State, ev Event, phases ...Phase) error {
	if s.Step == StepGenerating {
		for _, p := range phases {
			if s.Phase == p {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s in step %s phase %q", ErrInvalidTransition, ev.eventName(), s.Step, s.Phase)
}

func generating(s State, phase Phase) State {
	s.Step = StepGenerating
	s.Phase = phase
	s.Progress = pipeline.ProgressStart
	return s
}

func settle(s State, step Step) State {
	s.Step = step
	s.Phase = PhaseNone
	return s
}

// outlineFailed returns to the step the outline request was made from.
func outlineFailed(s State, alert string) State {
	if s.Phase == PhaseOutline {
		s = settle(s, StepInput)
	} else {
		s = settle(s, StepOutline)
	}
	s.Alert = alert
	return s
}
