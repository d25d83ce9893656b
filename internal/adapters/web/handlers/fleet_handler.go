package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// FleetService is the orchestrator surface the HTTP layer drives.
type FleetService interface {
	Compile(ctx context.Context, sketch, fqbn string) domain.CompileResult
	Upload(ctx context.Context, port, buildPath, fqbn string) domain.UploadResult
	FlashAll(ctx context.Context, sketch, fqbn string) domain.FlashAllResult
	ResetDevice(ctx context.Context, port string, method domain.ResetMethod, delay time.Duration) error
}

// FleetHandler serves compile, flash and reset operations.
type FleetHandler struct {
	Fleet FleetService
}

func NewFleetHandler(fleet FleetService) *FleetHandler {
	return &FleetHandler{Fleet: fleet}
}

// HandleCompile builds one sketch. A failed compile is still a 200; the
// result's ok field and output tell the caller what broke.
func (h *FleetHandler) HandleCompile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SketchPath string `json:"sketch_path"`
		FQBN       string `json:"fqbn"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.SketchPath == "" {
		WriteError(w, fmt.Errorf("%w: sketch_path required", domain.ErrInvalidInput))
		return
	}
	result := h.Fleet.Compile(r.Context(), req.SketchPath, req.FQBN)
	WriteOK(w, Envelope{"result": result})
}

// HandleUpload flashes one port from an existing build.
func (h *FleetHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port      string `json:"port"`
		BuildPath string `json:"build_path"`
		FQBN      string `json:"fqbn"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Port == "" || req.BuildPath == "" {
		WriteError(w, fmt.Errorf("%w: port and build_path required", domain.ErrInvalidInput))
		return
	}
	result := h.Fleet.Upload(r.Context(), req.Port, req.BuildPath, req.FQBN)
	WriteOK(w, Envelope{"result": result})
}

// HandleFlashAll compiles once and flashes every device-class port.
func (h *FleetHandler) HandleFlashAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SketchPath string `json:"sketch_path"`
		FQBN       string `json:"fqbn"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.SketchPath == "" {
		WriteError(w, fmt.Errorf("%w: sketch_path required", domain.ErrInvalidInput))
		return
	}
	result := h.Fleet.FlashAll(r.Context(), req.SketchPath, req.FQBN)
	WriteOK(w, Envelope{"result": result})
}

// HandleResetDevice reboots the device on one port.
func (h *FleetHandler) HandleResetDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port    string `json:"port"`
		Method  string `json:"method"`
		DelayMs int    `json:"delay_ms"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	err := h.Fleet.ResetDevice(r.Context(), req.Port, domain.ResetMethod(req.Method),
		time.Duration(req.DelayMs)*time.Millisecond)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteOK(w, Envelope{"port": req.Port})
}
