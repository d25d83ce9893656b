package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/buffer"
)

// defaultBufferCount bounds a buffer read when the query names no count.
const defaultBufferCount = 200

// BufferHandler serves ring-buffer reads, stats and clearing.
type BufferHandler struct {
	Buffers *buffer.Manager
}

func NewBufferHandler(buffers *buffer.Manager) *BufferHandler {
	return &BufferHandler{Buffers: buffers}
}

// HandleRead reads a port's ring buffer. `since` takes precedence over
// `count`; `search` filters with a regex.
func (h *BufferHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	port := q.Get("port")
	if !domain.IsValidPortAddress(port) {
		WriteError(w, fmt.Errorf("%w: port %q", domain.ErrInvalidInput, port))
		return
	}

	if pattern := q.Get("search"); pattern != "" {
		re, err := domain.CompilePattern(pattern)
		if err != nil {
			WriteError(w, err)
			return
		}
		limit := intQuery(q.Get("count"), defaultBufferCount)
		WriteOK(w, Envelope{"port": port, "lines": h.Buffers.Search(port, re, limit)})
		return
	}

	if sinceStr := q.Get("since"); sinceStr != "" {
		seq, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil {
			WriteError(w, fmt.Errorf("%w: since %q", domain.ErrInvalidInput, sinceStr))
			return
		}
		events, truncated, nextSeq := h.Buffers.Since(port, seq)
		WriteOK(w, Envelope{
			"port":      port,
			"lines":     events,
			"truncated": truncated,
			"nextSeq":   nextSeq,
		})
		return
	}

	count := intQuery(q.Get("count"), defaultBufferCount)
	WriteOK(w, Envelope{"port": port, "lines": h.Buffers.Recent(port, count)})
}

// HandleStats reports one port's stats, or all ports.
func (h *BufferHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if port := r.URL.Query().Get("port"); port != "" {
		WriteOK(w, Envelope{"stats": h.Buffers.Stats(port)})
		return
	}
	WriteOK(w, Envelope{"stats": h.Buffers.AllStats()})
}

// HandleClear wipes one port's buffer, or all of them.
func (h *BufferHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port string `json:"port"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Port == "" {
		h.Buffers.ClearAll()
		WriteOK(w, Envelope{"cleared": "all"})
		return
	}
	h.Buffers.Clear(req.Port)
	WriteOK(w, Envelope{"cleared": req.Port})
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
