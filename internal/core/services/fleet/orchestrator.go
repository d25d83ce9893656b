package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
)

// defaultUploadSpacing is the pause between sequential uploads so a
// shared USB hub settles between devices.
const defaultUploadSpacing = 2 * time.Second

// auditRecorder is the narrow audit surface the orchestrator needs.
type auditRecorder interface {
	Record(ctx context.Context, action domain.AuditAction, target, details string, ok bool, duration time.Duration)
}

// workspaceInfo supplies build defaults from the workspace config.
type workspaceInfo interface {
	Config() domain.WorkspaceConfig
	DefaultFQBN() string
}

// Orchestrator sequences compile, flash and reset operations across the
// fleet. Uploads never run concurrently; the serial bus is a shared
// resource.
type Orchestrator struct {
	toolchain ports.Toolchain
	enum      ports.Enumerator
	monitors  ports.MonitorRegistry
	control   ports.PortControl
	resetter  ports.DeviceResetter
	workspace workspaceInfo
	audit     auditRecorder

	uploadSpacing time.Duration
}

// NewOrchestrator wires the orchestrator. All collaborators are required.
func NewOrchestrator(
	toolchain ports.Toolchain,
	enum ports.Enumerator,
	monitors ports.MonitorRegistry,
	control ports.PortControl,
	resetter ports.DeviceResetter,
	workspace workspaceInfo,
	audit auditRecorder,
) *Orchestrator {
	return &Orchestrator{
		toolchain:     toolchain,
		enum:          enum,
		monitors:      monitors,
		control:       control,
		resetter:      resetter,
		workspace:     workspace,
		audit:         audit,
		uploadSpacing: defaultUploadSpacing,
	}
}

// Compile builds a sketch into a per-sketch directory under the
// workspace build output dir. An empty fqbn falls back to the workspace
// default.
func (o *Orchestrator) Compile(ctx context.Context, sketch, fqbn string) domain.CompileResult {
	start := time.Now()
	if fqbn == "" {
		fqbn = o.workspace.DefaultFQBN()
	}
	outputDir := filepath.Join(o.workspace.Config().BuildOutputDir, sketchName(sketch))

	result := o.toolchain.Compile(ctx, sketch, fqbn, outputDir)
	o.audit.Record(ctx, domain.ActionCompile, sketch, result.Error, result.OK, time.Since(start))
	return result
}

// Upload flashes a build onto one port, vacating any monitor session
// that holds it first.
func (o *Orchestrator) Upload(ctx context.Context, port, buildPath, fqbn string) domain.UploadResult {
	start := time.Now()
	if fqbn == "" {
		fqbn = o.workspace.DefaultFQBN()
	}
	if !domain.IsValidPortAddress(port) {
		return domain.UploadResult{Port: port, Error: fmt.Sprintf("invalid port %q", port)}
	}

	if err := o.monitors.StopByPort(ctx, port); err != nil {
		slog.Warn("could not vacate port before upload", "port", port, "error", err)
	}

	result := o.toolchain.Upload(ctx, port, buildPath, fqbn)
	o.audit.Record(ctx, domain.ActionUpload, port, result.Error, result.OK, time.Since(start))
	return result
}

// FlashAll compiles once and uploads to every target-class port in
// sequence. Per-port failures do not abort the run.
func (o *Orchestrator) FlashAll(ctx context.Context, sketch, fqbn string) domain.FlashAllResult {
	start := time.Now()
	if fqbn == "" {
		fqbn = o.workspace.DefaultFQBN()
	}

	var result domain.FlashAllResult

	records, _ := o.enum.List(ctx)
	var targets []string
	for _, rec := range records {
		if rec.TargetClass {
			targets = append(targets, rec.Address)
		}
	}
	result.Total = len(targets)

	result.Compile = o.Compile(ctx, sketch, fqbn)
	if !result.Compile.OK {
		result.Failed = result.Total
		o.audit.Record(ctx, domain.ActionFlashAll, sketch, "compile failed", false, time.Since(start))
		return result
	}
	if len(targets) == 0 {
		o.audit.Record(ctx, domain.ActionFlashAll, sketch, "no target ports", true, time.Since(start))
		return result
	}

	for i, port := range targets {
		if i > 0 {
			select {
			case <-ctx.Done():
				result.Uploads = append(result.Uploads, domain.UploadResult{Port: port, Error: ctx.Err().Error()})
				result.Failed++
				continue
			case <-time.After(o.uploadSpacing):
			}
		}
		up := o.Upload(ctx, port, result.Compile.BuildPath, fqbn)
		result.Uploads = append(result.Uploads, up)
		if up.OK {
			result.Success++
		} else {
			result.Failed++
		}
	}

	detail := fmt.Sprintf("%d/%d ports flashed", result.Success, result.Total)
	o.audit.Record(ctx, domain.ActionFlashAll, sketch, detail, result.Failed == 0, time.Since(start))
	slog.Info("flash-all finished", "sketch", sketch, "success", result.Success, "failed", result.Failed)
	return result
}

// ResetDevice reboots the device on port. Any monitor session holding
// the port is stopped and awaited first; delay is an optional settle
// pause after the reset.
func (o *Orchestrator) ResetDevice(ctx context.Context, port string, method domain.ResetMethod, delay time.Duration) error {
	start := time.Now()
	if !domain.IsValidPortAddress(port) {
		return fmt.Errorf("%w: port %q", domain.ErrInvalidInput, port)
	}
	if method == "" {
		method = domain.ResetPulse
	}

	if err := o.monitors.StopByPort(ctx, port); err != nil {
		return fmt.Errorf("vacate port %s: %w", port, err)
	}

	var err error
	switch method {
	case domain.ResetPulse:
		err = o.control.Pulse(port)
	case domain.ResetTool:
		err = o.resetter.HardReset(ctx, port)
	default:
		err = fmt.Errorf("%w: unknown reset method %q", domain.ErrInvalidInput, method)
	}

	if err == nil && delay > 0 {
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(delay):
		}
	}

	detail := string(method)
	if err != nil {
		detail = fmt.Sprintf("%s: %v", method, err)
	}
	o.audit.Record(ctx, domain.ActionDeviceReset, port, detail, err == nil, time.Since(start))
	return err
}

// sketchName derives the build subdirectory from the sketch path; a
// path to the .ino file and a path to its directory map to the same
// name.
func sketchName(sketch string) string {
	base := filepath.Base(sketch)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "sketch"
	}
	return base
}
