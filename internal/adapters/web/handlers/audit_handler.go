package handlers

import (
	"context"
	"net/http"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// AuditReader lists recorded operations.
type AuditReader interface {
	Logs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// AuditHandler serves the operation audit trail.
type AuditHandler struct {
	Audit AuditReader
}

func NewAuditHandler(audit AuditReader) *AuditHandler {
	return &AuditHandler{Audit: audit}
}

// HandleList returns recent entries, newest first.
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r.URL.Query().Get("limit"), 100)
	logs, err := h.Audit.Logs(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteOK(w, Envelope{"logs": logs})
}
