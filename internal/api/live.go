package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/reedfamily/chatlog/internal/feed"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type LiveHandler struct {
	hub *feed.Hub
	log *slog.Logger
}

func NewLiveHandler(hub *feed.Hub, log *slog.Logger) *LiveHandler {
	return &LiveHandler{hub: hub, log: log}
}

// Handle streams every newly stored record to the websocket client.
func (h *LiveHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("live websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	// Read from client to detect disconnect
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
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
