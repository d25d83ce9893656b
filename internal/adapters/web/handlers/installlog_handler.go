package handlers

import (
	"net/http"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/installlog"
)

// defaultInstallLogLimit bounds a listing when the query names no limit.
const defaultInstallLogLimit = 100

// InstallLogHandler serves the registration record log.
type InstallLogHandler struct {
	Ingester *installlog.Ingester
}

func NewInstallLogHandler(ing *installlog.Ingester) *InstallLogHandler {
	return &InstallLogHandler{Ingester: ing}
}

// HandleList returns the newest persisted records.
func (h *InstallLogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r.URL.Query().Get("limit"), defaultInstallLogLimit)
	records, err := h.Ingester.Recent(limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteOK(w, Envelope{"logs": records})
}

// HandleSubmit appends a manually submitted entry through the same
// dedup path as scanned lines.
func (h *InstallLogHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port  string                 `json:"port"`
		Entry domain.InstallLogEntry `json:"entry"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Port != "" {
		req.Entry.Port = req.Port
	}

	key, duplicate, err := h.Ingester.Submit(req.Entry)
	if err != nil {
		WriteError(w, err)
		return
	}
	if duplicate {
		WriteOK(w, Envelope{"duplicate": true})
		return
	}
	WriteOK(w, Envelope{"key": key})
}
