package serialport

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"go.bug.st/serial"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
)

// usbSerialRegex is the vendor heuristic for ESP32-class USB adapters.
// A port whose address or label matches is treated as target class even
// when the board-list tool names no matching board.
var usbSerialRegex = regexp.MustCompile(`(?i)(cp210x|ch340|ch341|ftdi|slab|wchusbserial|usbserial|usb.*serial|ttyUSB|ttyACM)`)

// Enumerator lists serial endpoints via the board-list tool, falling back
// to a plain port scan when the tool is unavailable.
type Enumerator struct {
	CLIPath   string
	FQBN      string
	Runner    ports.Runner
	Nicknames ports.NicknameSource
}

// NewEnumerator creates an Enumerator. fqbn is the default target
// identifier used to classify matching boards.
func NewEnumerator(cliPath, fqbn string, runner ports.Runner, nicknames ports.NicknameSource) *Enumerator {
	return &Enumerator{CLIPath: cliPath, FQBN: fqbn, Runner: runner, Nicknames: nicknames}
}

// boardListOutput accepts both the modern and the legacy board-list JSON
// schemas; unknown fields are ignored.
type boardListOutput struct {
	DetectedPorts []detectedPort `json:"detected_ports"`
	Ports         []flatPort     `json:"ports"`
}

type detectedPort struct {
	Port           flatPort        `json:"port"`
	MatchingBoards []matchingBoard `json:"matching_boards"`
}

type flatPort struct {
	Address       string            `json:"address"`
	Protocol      string            `json:"protocol"`
	ProtocolLabel string            `json:"protocol_label"`
	Label         string            `json:"label"`
	Properties    map[string]string `json:"properties"`
	// Legacy schema carries boards inline.
	Boards []matchingBoard `json:"boards"`
}

type matchingBoard struct {
	Name string `json:"name"`
	FQBN string `json:"fqbn"`
}

// List enumerates ports. A tool failure or unparseable output degrades to
// an empty (or fallback) list with the raw output in the diagnostics.
func (e *Enumerator) List(ctx context.Context) ([]domain.PortRecord, domain.PortScanDiagnostics) {
	var diag domain.PortScanDiagnostics

	res, err := e.Runner.Run(ctx, domain.CommandSpec{
		Path: e.CLIPath,
		Args: []string{"board", "list", "--format", "json"},
	})
	if err != nil {
		slog.Warn("board list tool unavailable, falling back to port scan", "error", err)
		return e.fallbackList(), diag
	}

	var out boardListOutput
	if jsonErr := json.Unmarshal([]byte(res.Stdout), &out); jsonErr != nil {
		diag.RawStdout = res.Stdout
		diag.RawStderr = res.Stderr
		diag.ParseErr = jsonErr.Error()
		slog.Warn("board list output not parseable", "error", jsonErr)
		return []domain.PortRecord{}, diag
	}

	var records []domain.PortRecord
	for _, dp := range out.DetectedPorts {
		records = append(records, e.toRecord(dp.Port, dp.MatchingBoards))
	}
	for _, fp := range out.Ports {
		records = append(records, e.toRecord(fp, fp.Boards))
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Address < records[j].Address })
	return records, diag
}

func (e *Enumerator) toRecord(p flatPort, boards []matchingBoard) domain.PortRecord {
	rec := domain.PortRecord{
		Address:   p.Address,
		Protocol:  p.Protocol,
		Label:     p.Label,
		VendorID:  p.Properties["vid"],
		ProductID: p.Properties["pid"],
	}
	if rec.Label == "" {
		rec.Label = p.ProtocolLabel
	}

	for _, b := range boards {
		rec.BoardName = b.Name
		rec.FQBN = b.FQBN
		if e.matchesTarget(b.FQBN) {
			rec.TargetClass = true
		}
	}
	if !rec.TargetClass && (usbSerialRegex.MatchString(p.Address) || usbSerialRegex.MatchString(p.Label)) {
		rec.TargetClass = true
	}

	rec.Reachable = portExists(p.Address)
	if e.Nicknames != nil {
		rec.Nickname = e.Nicknames.Nickname(p.Address)
	}
	return rec
}

// matchesTarget compares on the vendor:arch prefix so board variants of
// the configured target all classify.
func (e *Enumerator) matchesTarget(fqbn string) bool {
	if fqbn == "" || e.FQBN == "" {
		return false
	}
	parts := strings.SplitN(e.FQBN, ":", 3)
	if len(parts) < 2 {
		return strings.EqualFold(fqbn, e.FQBN)
	}
	return strings.HasPrefix(strings.ToLower(fqbn), strings.ToLower(parts[0]+":"+parts[1]))
}

// fallbackList scans the OS for serial devices when the tool is missing.
func (e *Enumerator) fallbackList() []domain.PortRecord {
	names, err := serial.GetPortsList()
	if err != nil {
		return []domain.PortRecord{}
	}
	records := make([]domain.PortRecord, 0, len(names))
	for _, name := range names {
		rec := domain.PortRecord{
			Address:     name,
			Protocol:    "serial",
			TargetClass: usbSerialRegex.MatchString(name),
			Reachable:   portExists(name),
		}
		if e.Nicknames != nil {
			rec.Nickname = e.Nicknames.Nickname(name)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Address < records[j].Address })
	return records
}

func portExists(address string) bool {
	if !strings.HasPrefix(address, "/") {
		// COM-style names have no path to stat; trust the tool.
		return true
	}
	_, err := os.Stat(address)
	return err == nil
}
