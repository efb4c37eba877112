package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moriwaka/gemini-podcat-generator/internal/audio"
	"github.com/moriwaka/gemini-podcat-generator/internal/studio"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	// the API is consumed by local players on other origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamEvent is one WebSocket message: a state snapshot or an audio chunk.
type streamEvent struct {
	Type  studio.UpdateKind `json:"type"`
	State *stateResponse    `json:"state,omitempty"`
	Audio *audioEvent       `json:"audio,omitempty"`
}

type audioEvent struct {
	Index           int     `json:"index"`
	Total           int     `json:"total"`
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	PCMBase64       string  `json:"pcm_base64"`
}

func newStreamEvent(id string, u studio.Update) streamEvent {
	ev := streamEvent{Type: u.Kind}
	switch u.Kind {
	case studio.UpdateState:
		st := newStateResponse(id, *u.State)
		ev.State = &st
	case studio.UpdateAudio:
		ev.Audio = &audioEvent{
			Index:           u.Audio.Index,
			Total:           u.Audio.Total,
			StartSeconds:    u.Audio.Start.Seconds(),
			DurationSeconds: u.Audio.Duration.Seconds(),
			PCMBase64:       audio.EncodeBase64(u.Audio.PCM),
		}
	}
	return ev
}

// handleStream pushes studio updates to a WebSocket client until either side
// goes away. Client messages are ignored apart from keeping the read deadline
// fresh.
func (h *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request) {
	s, err := h.studios.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("studio_id", s.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	h.metrics.StreamClientConnected()
	defer h.metrics.StreamClientDisconnected()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	h.logger.Info("Stream client connected", slog.String("studio_id", s.ID))

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case u, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// studio closed, or this client fell behind and was dropped
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended"))
				return
			}
			payload, err := json.Marshal(newStreamEvent(s.ID, u))
			if err != nil {
				h.logger.Error("Failed to encode stream event", slog.String("error", err.Error()))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("Stream write failed",
					slog.String("studio_id", s.ID),
					slog.String("error", err.Error()),
				)
				return
			}
			s.Touch()

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			h.logger.Info("Stream client disconnected", slog.String("studio_id", s.ID))
			return
		}
	}
}

// readPump drains the connection so control frames are handled, and closes
// done when the client goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
