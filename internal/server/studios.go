package server

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
	"github.com/moriwaka/gemini-podcat-generator/internal/studio"
)

// displayTurn is a transcript line as shown to the listener.
type displayTurn struct {
	Speaker podcast.Speaker `json:"speaker"`
	Text    string          `json:"text"`
}

// stateResponse is the JSON view of a studio.
type stateResponse struct {
	ID string `json:"id"`
	studio.State
	Display  []displayTurn `json:"display_transcript"`
	HasAudio bool          `json:"has_audio"`
}

func newStateResponse(id string, st studio.State) stateResponse {
	return stateResponse{
		ID:       id,
		State:    st,
		Display:  displayTranscript(st.Transcript),
		HasAudio: st.HasAudio(),
	}
}

func displayTranscript(turns []podcast.Turn) []displayTurn {
	out := make([]displayTurn, len(turns))
	for i, t := range turns {
		out[i] = displayTurn{Speaker: t.Speaker, Text: podcast.CleanForDisplay(t.Text)}
	}
	return out
}

// studioAction runs fn on the studio named in the path and writes the new state.
func (h *HTTPServer) studioAction(w http.ResponseWriter, r *http.Request, fn func(*studio.Studio) (studio.State, error)) {
	h.respondStudio(w, r, http.StatusOK, fn)
}

// studioJob is studioAction for actions that start background generation; they
// answer 202 and finish through the stream.
func (h *HTTPServer) studioJob(w http.ResponseWriter, r *http.Request, fn func(*studio.Studio) (studio.State, error)) {
	h.respondStudio(w, r, http.StatusAccepted, fn)
}

func (h *HTTPServer) respondStudio(w http.ResponseWriter, r *http.Request, status int, fn func(*studio.Studio) (studio.State, error)) {
	s, err := h.studios.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	st, err := fn(s)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, newStateResponse(s.ID, st))
}

func (h *HTTPServer) handleCreateStudio(w http.ResponseWriter, r *http.Request) {
	s := h.studios.Create()
	writeJSON(w, http.StatusCreated, newStateResponse(s.ID, s.State()))
}

func (h *HTTPServer) handleGetStudio(w http.ResponseWriter, r *http.Request) {
	h.studioAction(w, r, func(s *studio.Studio) (studio.State, error) {
		return s.State(), nil
	})
}

func (h *HTTPServer) handleDeleteStudio(w http.ResponseWriter, r *http.Request) {
	if !h.studios.Remove(r.PathValue("id")) {
		h.writeError(w, r, studio.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPServer) handleSelectLanguage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.studioAction(w, r, func(s *studio.Studio) (studio.State, error) {
		return s.SelectLanguage(podcast.Language(body.Language))
	})
}

func (h *HTTPServer) handleSelectGenre(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Genre string `json:"genre"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.studioAction(w, r, func(s *studio.Studio) (studio.State, error) {
		return s.SelectGenre(body.Genre)
	})
}

func (h *HTTPServer) handleStudioTopics(w http.ResponseWriter, r *http.Request) {
	s, err := h.studios.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	genre := trimmedQuery(r, "genre")
	if genre == "" {
		genre = s.State().Genre
	}

	topics, err := s.SuggestTopics(r.Context(), genre)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genre": genre, "topics": topics})
}

func (h *HTTPServer) handleEditTopic(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Topic string `json:"topic"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.studioAction(w, r, func(s *studio.Studio) (studio.State, error) {
		return s.EditTopic(body.Topic)
	})
}

func (h *HTTPServer) handleSubmitTopic(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Topic string `json:"topic"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.studioJob(w, r, func(s *studio.Studio) (studio.State, error) {
		return s.SubmitTopic(body.Topic)
	})
}

func (h *HTTPServer) handleExtendOutline(w http.ResponseWriter, r *http.Request) {
	h.studioJob(w, r, (*studio.Studio).ExtendOutline)
}

func (h *HTTPServer) handleRegenerateOutline(w http.ResponseWriter, r *http.Request) {
	h.studioJob(w, r, (*studio.Studio).RegenerateOutline)
}

func (h *HTTPServer) handleDeletePoint(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid outline index %q", errBadRequest, r.PathValue("index")))
		return
	}
	h.studioAction(w, r, func(s *studio.Studio) (studio.State, error) {
		return s.DeletePoint(index)
	})
}

func (h *HTTPServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	h.studioJob(w, r, (*studio.Studio).Generate)
}

func (h *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	h.studioAction(w, r, (*studio.Studio).NewEpisode)
}

func (h *HTTPServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	h.studioAction(w, r, func(s *studio.Studio) (studio.State, error) {
		return s.OpenSession(r.Context(), sessionID)
	})
}

func (h *HTTPServer) handleStudioAudio(w http.ResponseWriter, r *http.Request) {
	s, err := h.studios.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	wav, name, err := s.Audio()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeWAV(w, wav, name)
}

// writeWAV sends audio as a download. Non-ASCII topics are encoded per RFC 2231.
func writeWAV(w http.ResponseWriter, wav []byte, filename string) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment; filename=podcast.wav"
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

func trimmedQuery(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
