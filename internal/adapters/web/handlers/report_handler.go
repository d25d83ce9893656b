package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/reporting"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/health"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/installlog"
)

// reportInstallLimit is how many recent install records the PDF shows.
const reportInstallLimit = 20

// ReportHandler assembles and streams the fleet status PDF.
type ReportHandler struct {
	Enumerator ports.Enumerator
	Monitors   ports.MonitorRegistry
	Health     *health.Service
	Installs   *installlog.Ingester
	Exporter   *reporting.PDFExporter
}

func NewReportHandler(enum ports.Enumerator, monitors ports.MonitorRegistry, healthSvc *health.Service, installs *installlog.Ingester, exporter *reporting.PDFExporter) *ReportHandler {
	return &ReportHandler{
		Enumerator: enum,
		Monitors:   monitors,
		Health:     healthSvc,
		Installs:   installs,
		Exporter:   exporter,
	}
}

// HandleFleetReport collects a point-in-time snapshot and streams it as
// a PDF download.
func (h *ReportHandler) HandleFleetReport(w http.ResponseWriter, r *http.Request) {
	records, _ := h.Enumerator.List(r.Context())
	installs, err := h.Installs.Recent(reportInstallLimit)
	if err != nil {
		installs = []domain.InstallLogRecord{}
	}

	snap := reporting.FleetSnapshot{
		GeneratedAt: time.Now(),
		Ports:       records,
		Sessions:    h.Monitors.List(),
		Health:      h.Health.Fleet(),
		Installs:    installs,
	}

	data, err := h.Exporter.ExportFleetStatus(snap)
	if err != nil {
		WriteError(w, err)
		return
	}

	filename := fmt.Sprintf("fleet-status-%s.pdf", snap.GeneratedAt.Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}
