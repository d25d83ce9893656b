package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// FleetSnapshot is everything the fleet status report renders, collected
// by the caller at request time.
type FleetSnapshot struct {
	GeneratedAt time.Time
	Ports       []domain.PortRecord
	Sessions    []domain.SessionSnapshot
	Health      domain.FleetHealth
	Installs    []domain.InstallLogRecord
}

// PDFExporter renders fleet status reports to PDF.
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportFleetStatus generates the fleet status PDF.
func (e *PDFExporter) ExportFleetStatus(snap FleetSnapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, snap)
	e.addOverview(pdf, snap)
	e.addPortsTable(pdf, snap)
	e.addSessionsTable(pdf, snap)
	e.addHealthTable(pdf, snap)
	e.addInstallLogs(pdf, snap)
	e.addFooter(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, snap FleetSnapshot) {
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 14, "Fleet Status Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", snap.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (e *PDFExporter) addOverview(pdf *gofpdf.Fpdf, snap FleetSnapshot) {
	targets := 0
	for _, p := range snap.Ports {
		if p.TargetClass {
			targets++
		}
	}

	pdf.SetFont("Arial", "B", 13)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 9, "Overview", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(60, 60, 60)
	rows := []string{
		fmt.Sprintf("Serial ports: %d (%d device-class)", len(snap.Ports), targets),
		fmt.Sprintf("Active monitor sessions: %d", len(snap.Sessions)),
		fmt.Sprintf("Lines observed: %d", snap.Health.TotalLines),
		fmt.Sprintf("Crash signals: %d   Reboot signals: %d", snap.Health.TotalCrashes, snap.Health.TotalReboots),
		fmt.Sprintf("Recent install records: %d", len(snap.Installs)),
	}
	for _, r := range rows {
		pdf.CellFormat(0, 6, r, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (e *PDFExporter) addPortsTable(pdf *gofpdf.Fpdf, snap FleetSnapshot) {
	e.sectionTitle(pdf, "Serial Ports")
	if len(snap.Ports) == 0 {
		e.emptyNote(pdf, "No serial ports detected.")
		return
	}

	e.tableHeader(pdf, []col{{"Address", 50}, {"Nickname", 35}, {"Board", 55}, {"Device", 25}})
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for _, p := range snap.Ports {
		device := "no"
		if p.TargetClass {
			device = "yes"
		}
		pdf.CellFormat(50, 6, truncate(p.Address, 32), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, truncate(p.Nickname, 22), "1", 0, "L", false, 0, "")
		pdf.CellFormat(55, 6, truncate(p.BoardName, 36), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, device, "1", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
}

func (e *PDFExporter) addSessionsTable(pdf *gofpdf.Fpdf, snap FleetSnapshot) {
	e.sectionTitle(pdf, "Monitor Sessions")
	if len(snap.Sessions) == 0 {
		e.emptyNote(pdf, "No sessions running.")
		return
	}

	e.tableHeader(pdf, []col{{"Port", 45}, {"Baud", 20}, {"State", 25}, {"Lines", 20}, {"Last Line", 55}})
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for _, s := range snap.Sessions {
		pdf.CellFormat(45, 6, truncate(s.Port, 28), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", s.Baud), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, string(s.State), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", s.Lines), "1", 0, "R", false, 0, "")
		pdf.CellFormat(55, 6, truncate(s.LastLine, 34), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (e *PDFExporter) addHealthTable(pdf *gofpdf.Fpdf, snap FleetSnapshot) {
	e.sectionTitle(pdf, "Device Health")
	if len(snap.Health.Ports) == 0 {
		e.emptyNote(pdf, "No health observations yet.")
		return
	}

	e.tableHeader(pdf, []col{{"Port", 45}, {"Lines", 22}, {"Crashes", 22}, {"Reboots", 22}, {"Crash/min", 24}, {"Last Crash", 30}})
	pdf.SetFont("Arial", "", 9)
	for _, h := range snap.Health.Ports {
		// Flag unstable devices in red.
		if h.CrashesPerMinute >= 1.0 {
			pdf.SetTextColor(180, 0, 0)
		} else {
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.CellFormat(45, 6, truncate(h.Port, 28), "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, fmt.Sprintf("%d", h.Lines), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, fmt.Sprintf("%d", h.CrashLines), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, fmt.Sprintf("%d", h.RebootLines), "1", 0, "R", false, 0, "")
		pdf.CellFormat(24, 6, fmt.Sprintf("%.2f", h.CrashesPerMinute), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, truncate(h.LastCrash, 18), "1", 1, "L", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
}

func (e *PDFExporter) addInstallLogs(pdf *gofpdf.Fpdf, snap FleetSnapshot) {
	e.sectionTitle(pdf, "Recent Install Records")
	if len(snap.Installs) == 0 {
		e.emptyNote(pdf, "No install records.")
		return
	}

	e.tableHeader(pdf, []col{{"Time", 35}, {"Device", 45}, {"Status", 30}, {"Customer", 30}, {"Port", 25}})
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for _, rec := range snap.Installs {
		pdf.CellFormat(35, 6, rec.Timestamp.Format("01-02 15:04:05"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, truncate(rec.Entry.DeviceID, 28), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, truncate(rec.Entry.Status, 18), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, truncate(rec.Entry.CustomerID, 18), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, truncate(rec.Port, 15), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf) {
	pdf.SetY(-20)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 5, "fleetd - device fleet orchestrator", "", 1, "C", false, 0, "")
}

type col struct {
	name  string
	width float64
}

func (e *PDFExporter) sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 13)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
}

func (e *PDFExporter) emptyNote(pdf *gofpdf.Fpdf, note string) {
	pdf.SetFont("Arial", "I", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, note, "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (e *PDFExporter) tableHeader(pdf *gofpdf.Fpdf, cols []col) {
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 235, 245)
	pdf.SetTextColor(0, 0, 0)
	for i, c := range cols {
		border := "1"
		align := "L"
		last := i == len(cols)-1
		ln := 0
		if last {
			ln = 1
		}
		pdf.CellFormat(c.width, 7, c.name, border, ln, align, true, 0, "")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
