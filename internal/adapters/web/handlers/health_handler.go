package handlers

import (
	"fmt"
	"net/http"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/health"
)

// HealthHandler serves per-port and fleet health reports.
type HealthHandler struct {
	Health *health.Service
}

func NewHealthHandler(svc *health.Service) *HealthHandler {
	return &HealthHandler{Health: svc}
}

// HandleReport returns one port's record, or the fleet summary when no
// port is named.
func (h *HealthHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if port := r.URL.Query().Get("port"); port != "" {
		rec, ok := h.Health.Report(port)
		if !ok {
			WriteError(w, fmt.Errorf("%w: no observations for %s", domain.ErrPortUnreachable, port))
			return
		}
		WriteOK(w, Envelope{"health": rec})
		return
	}
	WriteOK(w, Envelope{"health": h.Health.Fleet()})
}
