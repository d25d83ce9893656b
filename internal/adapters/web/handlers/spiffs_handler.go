package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/fleet"
)

// SpiffsService proxies filesystem calls to the device HTTP server.
type SpiffsService interface {
	List(ctx context.Context, host string) (fleet.DeviceResponse, error)
	Read(ctx context.Context, host, path string) (fleet.DeviceResponse, error)
	Write(ctx context.Context, host, path, content string) (fleet.DeviceResponse, error)
	Delete(ctx context.Context, host, path string) (fleet.DeviceResponse, error)
	Info(ctx context.Context, host string) (fleet.DeviceResponse, error)
	Format(ctx context.Context, host string) (fleet.DeviceResponse, error)
}

// SpiffsHandler exposes the device filesystem proxy.
type SpiffsHandler struct {
	Spiffs SpiffsService
}

func NewSpiffsHandler(spiffs SpiffsService) *SpiffsHandler {
	return &SpiffsHandler{Spiffs: spiffs}
}

type spiffsRequest struct {
	DeviceIP string `json:"device_ip"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Confirm  bool   `json:"confirm"`
}

// parse accepts the parameters from either query values (GET) or a JSON
// body (POST).
func (h *SpiffsHandler) parse(r *http.Request) (spiffsRequest, error) {
	var req spiffsRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.DeviceIP = q.Get("device_ip")
		req.Path = q.Get("path")
	} else if err := decodeBody(r, &req); err != nil {
		return req, err
	}
	if req.DeviceIP == "" {
		return req, fmt.Errorf("%w: device_ip required", domain.ErrInvalidInput)
	}
	return req, nil
}

func (h *SpiffsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	res, err := h.Spiffs.List(r.Context(), req.DeviceIP)
	h.respond(w, res, err)
}

func (h *SpiffsHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if req.Path == "" {
		WriteError(w, fmt.Errorf("%w: path required", domain.ErrInvalidInput))
		return
	}
	res, err := h.Spiffs.Read(r.Context(), req.DeviceIP, req.Path)
	h.respond(w, res, err)
}

func (h *SpiffsHandler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if req.Path == "" {
		WriteError(w, fmt.Errorf("%w: path required", domain.ErrInvalidInput))
		return
	}
	res, err := h.Spiffs.Write(r.Context(), req.DeviceIP, req.Path, req.Content)
	h.respond(w, res, err)
}

func (h *SpiffsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if req.Path == "" {
		WriteError(w, fmt.Errorf("%w: path required", domain.ErrInvalidInput))
		return
	}
	res, err := h.Spiffs.Delete(r.Context(), req.DeviceIP, req.Path)
	h.respond(w, res, err)
}

func (h *SpiffsHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	res, err := h.Spiffs.Info(r.Context(), req.DeviceIP)
	h.respond(w, res, err)
}

// HandleFormat wipes the device filesystem. Destructive, so it demands
// an explicit confirm flag.
func (h *SpiffsHandler) HandleFormat(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !req.Confirm {
		WriteError(w, fmt.Errorf("%w: confirm required for format", domain.ErrInvalidInput))
		return
	}
	res, err := h.Spiffs.Format(r.Context(), req.DeviceIP)
	h.respond(w, res, err)
}

func (h *SpiffsHandler) respond(w http.ResponseWriter, body fleet.DeviceResponse, err error) {
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteOK(w, Envelope{"device": body})
}
