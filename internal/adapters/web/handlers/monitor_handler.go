package handlers

import (
	"fmt"
	"net/http"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/monitor"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// baudSource supplies the workspace default line rate.
type baudSource interface {
	DefaultBaud() int
}

// MonitorHandler drives session start/stop and listings.
type MonitorHandler struct {
	Manager   *monitor.Manager
	Workspace baudSource
}

func NewMonitorHandler(mgr *monitor.Manager, ws baudSource) *MonitorHandler {
	return &MonitorHandler{Manager: mgr, Workspace: ws}
}

// HandleStart launches a session on a free port.
func (h *MonitorHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var opts domain.MonitorOptions
	if err := decodeBody(r, &opts); err != nil {
		WriteError(w, err)
		return
	}
	if opts.Baud == 0 {
		opts.Baud = h.Workspace.DefaultBaud()
	}
	if !domain.IsValidBaud(opts.Baud) {
		WriteError(w, fmt.Errorf("%w: baud %d", domain.ErrInvalidInput, opts.Baud))
		return
	}

	s, err := h.Manager.Start(r.Context(), opts)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteOK(w, Envelope{"token": s.Token(), "port": s.Port(), "baud": s.Baud()})
}

// HandleStop terminates one session by token or port and returns its
// summary.
func (h *MonitorHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
		Port  string `json:"port"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	token := req.Token
	if token == "" {
		if req.Port == "" {
			WriteError(w, fmt.Errorf("%w: token or port required", domain.ErrInvalidInput))
			return
		}
		s, err := h.Manager.GetByPort(req.Port)
		if err != nil {
			WriteError(w, err)
			return
		}
		token = s.Token()
	}

	summary, err := h.Manager.Stop(r.Context(), token)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteOK(w, Envelope{"summary": summary})
}

// HandleStopAll terminates every live session.
func (h *MonitorHandler) HandleStopAll(w http.ResponseWriter, r *http.Request) {
	stopped := len(h.Manager.List())
	h.Manager.StopAll(r.Context())
	WriteOK(w, Envelope{"stopped": stopped})
}

// HandleList returns snapshots of live sessions.
func (h *MonitorHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, Envelope{"monitors": h.Manager.List()})
}
