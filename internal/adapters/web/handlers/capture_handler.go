package handlers

import (
	"fmt"
	"net/http"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/buffer"
)

// CaptureHandler serves pattern captures over the live stream.
type CaptureHandler struct {
	Buffers *buffer.Manager
}

func NewCaptureHandler(buffers *buffer.Manager) *CaptureHandler {
	return &CaptureHandler{Buffers: buffers}
}

// HandleStart registers a capture and returns immediately with its id.
func (h *CaptureHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var spec domain.CaptureSpec
	if err := decodeBody(r, &spec); err != nil {
		WriteError(w, err)
		return
	}
	c, err := h.Buffers.StartCapture(spec)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteOK(w, Envelope{"captureId": c.ID()})
}

// HandleWait registers a capture and blocks until it resolves. A
// timeout resolution is still a 200; the result's status tells the
// caller what happened.
func (h *CaptureHandler) HandleWait(w http.ResponseWriter, r *http.Request) {
	var spec domain.CaptureSpec
	if err := decodeBody(r, &spec); err != nil {
		WriteError(w, err)
		return
	}
	c, err := h.Buffers.StartCapture(spec)
	if err != nil {
		WriteError(w, err)
		return
	}

	select {
	case result := <-c.Done():
		WriteOK(w, Envelope{
			"result":  result,
			"matched": result.Status == domain.CaptureMatched,
		})
	case <-r.Context().Done():
		h.Buffers.CancelCapture(c.ID())
		// Drain so the capture's send never blocks.
		<-c.Done()
	}
}

// HandleCancel resolves an active capture as cancelled.
func (h *CaptureHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CaptureID string `json:"captureId"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if !h.Buffers.CancelCapture(req.CaptureID) {
		WriteError(w, fmt.Errorf("%w: %s", domain.ErrCaptureNotFound, req.CaptureID))
		return
	}
	WriteOK(w, Envelope{"cancelled": req.CaptureID})
}

// HandleList returns active captures, optionally filtered by port.
func (h *CaptureHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, Envelope{"captures": h.Buffers.ActiveCaptures(r.URL.Query().Get("port"))})
}
