package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/broadcast"
)

// SSEHandler streams the serial event bus to one client: replay buffer
// first, then live events. Keep-alive ticks go out as SSE comments so
// proxies keep the connection open without polluting the event stream.
type SSEHandler struct {
	Broadcaster *broadcast.Broadcaster
}

func NewSSEHandler(b *broadcast.Broadcaster) *SSEHandler {
	return &SSEHandler{Broadcaster: b}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.Broadcaster.Subscribe()
	defer h.Broadcaster.Unsubscribe(sub)
	slog.Debug("sse client connected", "remote", r.RemoteAddr)

	// Replay precedes anything live: the backlog is a snapshot outside
	// the bounded queue, so it arrives complete.
	for _, ev := range sub.Backlog() {
		if !h.writeEvent(w, flusher, ev) {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("sse client disconnected", "remote", r.RemoteAddr, "dropped", sub.Dropped())
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if !h.writeEvent(w, flusher, ev) {
				return
			}
		}
	}
}

// writeEvent emits one SSE frame. Pings go out as comments. A false
// return means the client is gone.
func (h *SSEHandler) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev domain.SerialEvent) bool {
	if ev.Type == domain.EventPing {
		if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("sse marshal failed", "error", err)
		return true
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
