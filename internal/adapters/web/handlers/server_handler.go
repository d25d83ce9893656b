package handlers

import (
	"log/slog"
	"net/http"
)

// ServerHandler exposes process lifecycle operations.
type ServerHandler struct {
	// Restart signals the application to shut down gracefully; an
	// external supervisor is expected to bring the process back up.
	Restart func()
}

func NewServerHandler(restart func()) *ServerHandler {
	return &ServerHandler{Restart: restart}
}

// HandleRestart acknowledges, then triggers shutdown after the response
// is on the wire.
func (h *ServerHandler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, Envelope{"restarting": true})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	slog.Info("restart requested over API")
	go h.Restart()
}
