package handlers

import (
	"net/http"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/workspace"
)

// PortsHandler serves port enumeration and nickname assignment.
type PortsHandler struct {
	Enumerator ports.Enumerator
	Workspace  *workspace.Manager
}

func NewPortsHandler(enum ports.Enumerator, ws *workspace.Manager) *PortsHandler {
	return &PortsHandler{Enumerator: enum, Workspace: ws}
}

// HandleList enumerates serial ports, overlaying configured nicknames.
func (h *PortsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	records, diags := h.Enumerator.List(r.Context())
	for i := range records {
		records[i].Nickname = h.Workspace.Nickname(records[i].Address)
	}
	body := Envelope{"ports": records}
	if diags.ParseErr != "" {
		body["diagnostics"] = diags
	}
	WriteOK(w, body)
}

// HandleGetNicknames returns the current nickname map.
func (h *PortsHandler) HandleGetNicknames(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, Envelope{"nicknames": h.Workspace.Nicknames()})
}

// HandleSetNickname assigns or clears one nickname and returns the
// updated map.
func (h *PortsHandler) HandleSetNickname(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port     string `json:"port"`
		Nickname string `json:"nickname"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.Workspace.SetNickname(req.Port, req.Nickname); err != nil {
		WriteError(w, err)
		return
	}
	WriteOK(w, Envelope{"nicknames": h.Workspace.Nicknames()})
}
