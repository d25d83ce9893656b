package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// Envelope is the uniform response shape: {ok:true, ...} on success,
// {ok:false, error} on failure.
type Envelope map[string]any

// WriteOK merges data into a success envelope.
func WriteOK(w http.ResponseWriter, data Envelope) {
	body := Envelope{"ok": true}
	for k, v := range data {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// WriteError maps domain error kinds onto HTTP status codes.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrPatternInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrPortBusy):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPortUnreachable),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrCaptureNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDeviceUnreachable):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, Envelope{"ok": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}

// decodeBody parses a JSON request body into dst, mapping failures to
// ErrInvalidInput.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}
