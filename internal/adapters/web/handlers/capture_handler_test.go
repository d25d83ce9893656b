package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/buffer"
)

func TestCaptureStartReturnsID(t *testing.T) {
	h := NewCaptureHandler(buffer.NewManager(0))

	req := httptest.NewRequest(http.MethodPost, "/api/capture/start",
		strings.NewReader(`{"port":"/dev/ttyUSB0","pattern":"READY","timeout_ms":5000}`))
	rec := httptest.NewRecorder()
	h.HandleStart(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.NotEmpty(t, body["captureId"])
}

func TestCaptureStartInvalidPattern(t *testing.T) {
	h := NewCaptureHandler(buffer.NewManager(0))

	req := httptest.NewRequest(http.MethodPost, "/api/capture/start",
		strings.NewReader(`{"port":"/dev/ttyUSB0","pattern":"[unclosed"}`))
	rec := httptest.NewRecorder()
	h.HandleStart(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaptureWaitMatches(t *testing.T) {
	m := buffer.NewManager(0)
	h := NewCaptureHandler(m)

	// A live stream emitting heartbeats while the wait is pending.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		var n int64
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n++
				m.Append("/dev/ttyUSB0", domain.NewLineEvent("/dev/ttyUSB0", "", "heartbeat", n, 115200, "stdout", false))
			}
		}
	}()

	req := httptest.NewRequest(http.MethodPost, "/api/capture/wait",
		strings.NewReader(`{"port":"/dev/ttyUSB0","pattern":"heartbeat","timeout_ms":2000}`))
	rec := httptest.NewRecorder()
	h.HandleWait(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, true, body["matched"])
	result := body["result"].(map[string]any)
	assert.Equal(t, string(domain.CaptureMatched), result["status"])
	assert.Equal(t, "heartbeat", result["matched"])
}

func TestCaptureWaitTimesOut(t *testing.T) {
	h := NewCaptureHandler(buffer.NewManager(0))

	start := time.Now()
	req := httptest.NewRequest(http.MethodPost, "/api/capture/wait",
		strings.NewReader(`{"port":"/dev/ttyUSB0","pattern":"READY","timeout_ms":100}`))
	rec := httptest.NewRecorder()
	h.HandleWait(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["matched"])
	result := body["result"].(map[string]any)
	assert.Equal(t, string(domain.CaptureTimeout), result["status"])
}

func TestCaptureCancelUnknownID(t *testing.T) {
	h := NewCaptureHandler(buffer.NewManager(0))

	req := httptest.NewRequest(http.MethodPost, "/api/capture/cancel",
		strings.NewReader(`{"captureId":"nope"}`))
	rec := httptest.NewRecorder()
	h.HandleCancel(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCaptureListFiltersByPort(t *testing.T) {
	m := buffer.NewManager(0)
	h := NewCaptureHandler(m)
	_, err := m.StartCapture(domain.CaptureSpec{Port: "/dev/ttyUSB0", Pattern: "A", TimeoutMs: 5000})
	require.NoError(t, err)
	_, err = m.StartCapture(domain.CaptureSpec{Port: "/dev/ttyUSB1", Pattern: "B", TimeoutMs: 5000})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/captures?port=/dev/ttyUSB0", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	body := decodeEnvelope(t, rec)
	require.Len(t, body["captures"].([]any), 1)
}
