package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/broadcast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is origin-open like the rest of the surface; CORS policy
	// is enforced by the same permissive middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSManager serves the event bus over WebSocket for clients that prefer
// a socket to SSE. Each connection gets its own subscriber, so the
// drop-oldest policy applies per client.
type WSManager struct {
	Broadcaster *broadcast.Broadcaster
}

func NewWSManager(b *broadcast.Broadcaster) *WSManager {
	return &WSManager{Broadcaster: b}
}

// HandleWebSocket upgrades and pumps events until either side closes.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	slog.Debug("websocket client connected", "remote", r.RemoteAddr)

	sub := m.Broadcaster.Subscribe()
	done := make(chan struct{})

	// Reader goroutine: detects client close, nothing inbound matters.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		m.Broadcaster.Unsubscribe(sub)
		conn.Close()
		slog.Debug("websocket client disconnected", "remote", r.RemoteAddr, "dropped", sub.Dropped())
	}()

	// Replay snapshot first, complete and in order; live events follow.
	for _, ev := range sub.Backlog() {
		if !writeWSEvent(conn, ev) {
			return
		}
	}

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if !writeWSEvent(conn, ev) {
				return
			}
		}
	}
}

// writeWSEvent sends one event on the socket. Pings map to protocol
// ping frames. A false return means the connection is dead.
func writeWSEvent(conn *websocket.Conn, ev domain.SerialEvent) bool {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if ev.Type == domain.EventPing {
		return conn.WriteMessage(websocket.PingMessage, nil) == nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return true
	}
	return conn.WriteMessage(websocket.TextMessage, data) == nil
}
