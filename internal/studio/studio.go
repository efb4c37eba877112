package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/moriwaka/gemini-podcat-generator/internal/pipeline"
	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
	"github.com/moriwaka/gemini-podcat-generator/internal/store"
)

// saveTimeout bounds persisting partial audio after the run was cancelled.
const saveTimeout = 5 * time.Second

var (
	// ErrBusy is returned while a generation request is already in flight.
	ErrBusy = errors.New("studio is busy")
	// ErrNoAudio is returned when the current result has no playable audio.
	ErrNoAudio = errors.New("no audio available")
	// ErrClosed is returned by a studio that has been shut down.
	ErrClosed = errors.New("studio is closed")
)

// Generator produces outlines, scripts and topic ideas.
type Generator interface {
	GenerateOutline(ctx context.Context, topic string, lang podcast.Language) ([]string, error)
	ExtendOutline(ctx context.Context, topic string, current []string, lang podcast.Language) ([]string, error)
	GenerateFullScript(ctx context.Context, topic string, outline []string, lang podcast.Language) (*podcast.ScriptResult, error)
	GenerateGenreTopics(ctx context.Context, genre string, lang podcast.Language) ([]string, error)
}

// AudioRunner turns a transcript into audio.
type AudioRunner interface {
	Run(ctx context.Context, turns []podcast.Turn, hooks pipeline.Hooks) (*pipeline.Result, error)
}

// SessionStore persists finished episodes.
type SessionStore interface {
	SaveSession(ctx context.Context, session *store.Session) error
	GetSession(ctx context.Context, id string) (*store.Session, error)
}

// Dependencies are the collaborators shared by every studio.
type Dependencies struct {
	Generator Generator
	Audio     AudioRunner
	Store     SessionStore
}

// UpdateKind tags an Update.
type UpdateKind string

const (
	UpdateState UpdateKind = "state"
	UpdateAudio UpdateKind = "audio"
)

// AudioChunk is a freshly synthesized chunk ready for playback.
type AudioChunk struct {
	Index    int
	Total    int
	Start    time.Duration
	Duration time.Duration
	PCM      []byte
}

// Update is delivered to subscribers on every state change and audio chunk.
type Update struct {
	Kind  UpdateKind
	State *State
	Audio *AudioChunk
}

const subscriberBuffer = 64

// Studio drives one user's episode through the input, outline, generating and
// result steps. Generation runs in the background; at most one generation
// request is in flight at a time.
type Studio struct {
	ID        string
	CreatedAt time.Time

	state        State
	busy         bool
	closed       bool
	lastActivity time.Time

	subscribers map[int]chan Update
	nextSubID   int

	deps Dependencies

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger

	mu sync.RWMutex
}

func newStudio(parent context.Context, id string, deps Dependencies, logger *slog.Logger) *Studio {
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()
	return &Studio{
		ID:           id,
		CreatedAt:    now,
		state:        Initial(podcast.DefaultLanguage),
		lastActivity: now,
		subscribers:  make(map[int]chan Update),
		deps:         deps,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.With(slog.String("studio_id", id)),
	}
}

// State returns the current snapshot
func (s *Studio) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Busy reports whether a generation request is in flight
func (s *Studio) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// LastActivity returns the time of the last client interaction
func (s *Studio) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Touch records client activity
func (s *Studio) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// SubscriberCount returns the number of live subscribers
func (s *Studio) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Subscribe returns a channel of updates, starting with the current state, and
// a function that ends the subscription. A subscriber whose buffer fills up is
// disconnected, closing its channel, rather than blocking generation or
// missing audio.
func (s *Studio) Subscribe() (<-chan Update, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Update, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	st := s.state
	ch <- Update{Kind: UpdateState, State: &st}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// SelectLanguage changes the episode language and clears the genre.
func (s *Studio) SelectLanguage(lang podcast.Language) (State, error) {
	return s.apply(LanguageSelected{Language: lang})
}

// SelectGenre picks a genre from the catalogue of the current language.
func (s *Studio) SelectGenre(genre string) (State, error) {
	return s.apply(GenreSelected{Genre: genre})
}

// EditTopic sets the topic field without submitting it.
func (s *Studio) EditTopic(topic string) (State, error) {
	return s.apply(TopicEdited{Topic: topic})
}

// DeletePoint removes one outline point.
func (s *Studio) DeletePoint(index int) (State, error) {
	return s.apply(PointDeleted{Index: index})
}

// NewEpisode clears the result and returns to input.
func (s *Studio) NewEpisode() (State, error) {
	return s.apply(NewEpisode{})
}

// SubmitTopic starts outline generation for topic.
func (s *Studio) SubmitTopic(topic string) (State, error) {
	return s.start(TopicSubmitted{Topic: topic}, s.runOutline)
}

// RegenerateOutline replaces the outline with a fresh one.
func (s *Studio) RegenerateOutline() (State, error) {
	return s.start(RegenerateRequested{}, s.runOutline)
}

// ExtendOutline appends more points to the outline.
func (s *Studio) ExtendOutline() (State, error) {
	return s.start(ExtendRequested{}, s.runExtend)
}

// Generate runs script and audio generation for the current outline.
func (s *Studio) Generate() (State, error) {
	return s.start(GenerateRequested{}, s.runEpisode)
}

// SuggestTopics asks for topic ideas in a genre of the current language.
func (s *Studio) SuggestTopics(ctx context.Context, genre string) ([]string, error) {
	s.mu.Lock()
	if err := s.acquireLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	lang := s.state.Language
	step := s.state.Step
	if step != StepInput || !podcast.IsGenre(lang, genre) {
		s.busy = false
		s.mu.Unlock()
		if step != StepInput {
			return nil, fmt.Errorf("%w: topic suggestions in step %s", ErrInvalidTransition, step)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenre, genre)
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	return s.deps.Generator.GenerateGenreTopics(ctx, genre, lang)
}

// OpenSession loads a saved episode into the result step.
func (s *Studio) OpenSession(ctx context.Context, id string) (State, error) {
	if s.Busy() {
		return s.State(), ErrBusy
	}
	sess, err := s.deps.Store.GetSession(ctx, id)
	if err != nil {
		return s.State(), err
	}
	return s.apply(SessionOpened{Session: *sess})
}

// Audio returns the WAV of the current result and its download file name.
func (s *Studio) Audio() ([]byte, string, error) {
	st := s.State()
	if !st.HasAudio() {
		return nil, "", ErrNoAudio
	}
	return st.Audio, podcast.DownloadFilename(st.Topic), nil
}

// Wait blocks until background generation has finished
func (s *Studio) Wait() {
	s.wg.Wait()
}

// Close stops background work and ends all subscriptions
func (s *Studio) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()
}

// apply runs a synchronous transition.
func (s *Studio) apply(ev Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.state, ErrClosed
	}
	s.lastActivity = time.Now()

	next, err := Reduce(s.state, ev)
	if err != nil {
		return s.state, err
	}
	s.setStateLocked(next)
	return next, nil
}

// start runs a transition into generating and launches job in the background.
func (s *Studio) start(ev Event, job func(ctx context.Context, st State)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquireLocked(); err != nil {
		return s.state, err
	}
	s.lastActivity = time.Now()

	next, err := Reduce(s.state, ev)
	if err != nil {
		s.busy = false
		return s.state, err
	}
	s.setStateLocked(next)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job(s.ctx, next)
	}()
	return next, nil
}

func (s *Studio) acquireLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

// dispatch applies an event produced by background work.
func (s *Studio) dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchLocked(ev)
}

// finish applies the last event of a background job and releases the studio.
func (s *Studio) finish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchLocked(ev)
	s.busy = false
}

func (s *Studio) dispatchLocked(ev Event) {
	next, err := Reduce(s.state, ev)
	if err != nil {
		s.logger.Error("Dropped event",
			slog.String("event", ev.eventName()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.setStateLocked(next)
}

func (s *Studio) setStateLocked(next State) {
	prev := s.state.Step
	s.state = next
	if prev != next.Step {
		s.logger.Info("Studio step changed",
			slog.String("from", string(prev)),
			slog.String("to", string(next.Step)),
			slog.String("phase", string(next.Phase)),
		)
	}
	st := next
	s.broadcastLocked(Update{Kind: UpdateState, State: &st})
}

func (s *Studio) broadcastLocked(u Update) {
	for id, ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			s.logger.Warn("Subscriber too slow, disconnecting",
				slog.Int("subscriber", id),
				slog.String("kind", string(u.Kind)),
			)
			delete(s.subscribers, id)
			close(ch)
		}
	}
}

func (s *Studio) publishChunk(c pipeline.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(Update{Kind: UpdateAudio, Audio: &AudioChunk{
		Index:    c.Index,
		Total:    c.Total,
		Start:    c.Playback.Start,
		Duration: c.Playback.Duration,
		PCM:      c.PCM,
	}})
}

func (s *Studio) runOutline(ctx context.Context, st State) {
	points, err := s.deps.Generator.GenerateOutline(ctx, st.Topic, st.Language)
	if err != nil {
		s.logger.Warn("Outline generation failed", slog.String("error", err.Error()))
		s.finish(OutlineFailed{})
		return
	}
	s.finish(OutlineGenerated{Points: points})
}

func (s *Studio) runExtend(ctx context.Context, st State) {
	points, err := s.deps.Generator.ExtendOutline(ctx, st.Topic, st.Outline, st.Language)
	if err != nil {
		s.logger.Warn("Outline extension failed", slog.String("error", err.Error()))
		s.finish(OutlineFailed{})
		return
	}
	s.finish(OutlineExtended{Points: points})
}

func (s *Studio) runEpisode(ctx context.Context, st State) {
	s.dispatch(ProgressUpdated{Percent: pipeline.ProgressScriptStart})

	script, err := s.deps.Generator.GenerateFullScript(ctx, st.Topic, st.Outline, st.Language)
	if err != nil {
		s.logger.Error("Script generation failed", slog.String("error", err.Error()))
		s.finish(ScriptFailed{Reason: fmt.Sprintf("Script generation failed: %v", err)})
		return
	}
	if len(script.Transcript) == 0 {
		s.logger.Warn("Script generation returned no turns")
		s.finish(ScriptGenerated{Result: *script})
		return
	}
	s.dispatch(ScriptGenerated{Result: *script})

	result, err := s.deps.Audio.Run(ctx, script.Transcript, pipeline.Hooks{
		OnChunk:    s.publishChunk,
		OnProgress: func(pct int) { s.dispatch(ProgressUpdated{Percent: pct}) },
	})
	if err != nil && (result == nil || result.WAV == nil) {
		s.logger.Error("Audio generation failed", slog.String("error", err.Error()))
		s.finish(AudioFailed{Reason: fmt.Sprintf("Audio generation failed: %v", err)})
		return
	}

	saveCtx := ctx
	if err != nil {
		s.logger.Warn("Audio generation interrupted, keeping produced chunks",
			slog.Int("chunks_produced", result.ChunksProduced),
			slog.Int("chunks_total", result.ChunksTotal),
			slog.String("error", err.Error()),
		)
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
	}

	var sessionID string
	if result.WAV != nil {
		sessionID = s.save(saveCtx, st, script, result.WAV)
	}

	s.finish(AudioGenerated{
		Status:    result.Status,
		Audio:     result.WAV,
		SessionID: sessionID,
	})
}

// save persists a finished episode and returns its id, or "" if saving failed.
func (s *Studio) save(ctx context.Context, st State, script *podcast.ScriptResult, wav []byte) string {
	session := &store.Session{
		ID:         store.NewSessionID(),
		Topic:      st.Topic,
		Language:   st.Language,
		Transcript: script.Transcript,
		Sources:    script.Sources,
		Audio:      wav,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := s.deps.Store.SaveSession(ctx, session); err != nil {
		s.logger.Error("Failed to save session",
			slog.String("topic", st.Topic),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return session.ID
}
