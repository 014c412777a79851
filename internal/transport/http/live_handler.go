// Package http exposes the operator-facing surface: a health endpoint and a
// read-only WebSocket feed of live quiz standings.
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

// LiveHandler streams standings snapshots for one session over a WebSocket.
type LiveHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewLiveHandler(service *app.QuizService, log *zap.Logger) *LiveHandler {
	return &LiveHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string           `json:"type"`
	Payload domain.Standings `json:"payload"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServeLive upgrades the request and streams one standings frame per update
// until the client disconnects.
func (h *LiveHandler) ServeLive(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chatId"), 10, 64)
	sessionID := r.URL.Query().Get("sessionId")
	if err != nil || sessionID == "" {
		http.Error(w, "missing or invalid chatId/sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), chatID, sessionID)
	if err != nil {
		msg := "subscribe failed"
		if errors.Is(err, domain.ErrSessionNotFound) {
			msg = "session not found"
		}
		_ = conn.WriteJSON(errorMessage{Type: "error", Message: msg})
		return
	}
	defer cancel()

	// Reader goroutine only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "standings", Payload: update}); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
