package server

import (
	"fmt"
	"net/http"

	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
	"github.com/moriwaka/gemini-podcat-generator/internal/store"
	"github.com/moriwaka/gemini-podcat-generator/internal/studio"
)

// sessionSummary is one row of the history list
type sessionSummary struct {
	ID        string           `json:"id"`
	Topic     string           `json:"topic"`
	Language  podcast.Language `json:"language"`
	Timestamp int64            `json:"timestamp"`
	Turns     int              `json:"turns"`
	AudioSize int              `json:"audio_bytes"`
}

type sessionResponse struct {
	store.Session
	Display []displayTurn `json:"display_transcript"`
}

func (h *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.GetAllSessions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summaries := make([]sessionSummary, len(sessions))
	for i, s := range sessions {
		summaries[i] = sessionSummary{
			ID:        s.ID,
			Topic:     s.Topic,
			Language:  s.Language,
			Timestamp: s.Timestamp,
			Turns:     len(s.Transcript),
			AudioSize: len(s.Audio),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_sessions": len(summaries),
		"sessions":       summaries,
	})
}

func (h *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Session: *session,
		Display: displayTranscript(session.Transcript),
	})
}

func (h *HTTPServer) handleSessionAudio(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeWAV(w, session.Audio, podcast.DownloadFilename(session.Topic))
}

func (h *HTTPServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPServer) handleGenres(w http.ResponseWriter, r *http.Request) {
	lang, err := podcast.ParseLanguage(trimmedQuery(r, "language"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"language": lang,
		"genres":   podcast.Genres(lang),
	})
}

func (h *HTTPServer) handleGenreTopics(w http.ResponseWriter, r *http.Request) {
	lang, err := podcast.ParseLanguage(trimmedQuery(r, "language"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	genre := r.PathValue("genre")
	if !podcast.IsGenre(lang, genre) {
		h.writeError(w, r, fmt.Errorf("%w: %q", studio.ErrUnknownGenre, genre))
		return
	}

	topics, err := h.topics.GenerateGenreTopics(r.Context(), genre, lang)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"language": lang,
		"genre":    genre,
		"topics":   topics,
	})
}
