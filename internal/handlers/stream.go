package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pandeptwidyaop/instance-remote/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // token auth happens before the upgrade
	},
}

// StreamHandler pushes live launch events to WebSocket clients.
type StreamHandler struct {
	coordinator *services.Coordinator
}

// NewStreamHandler creates a new StreamHandler instance.
func NewStreamHandler(coordinator *services.Coordinator) *StreamHandler {
	return &StreamHandler{coordinator: coordinator}
}

// Events upgrades the connection and forwards launch events until the
// client disconnects.
func (h *StreamHandler) Events(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Stream] WebSocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	events := h.coordinator.Subscribe()
	defer h.coordinator.Unsubscribe(events)

	// Drain client reads so pings/close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteJSON(event); err != nil {
				return
			}
		case <-ping.C:
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
