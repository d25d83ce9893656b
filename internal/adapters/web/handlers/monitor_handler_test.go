package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/monitor"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/buffer"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/health"
)

type nopInstalls struct{}

func (nopInstalls) ScanLine(port, nickname, line string) {}

type nopNicknames struct{}

func (nopNicknames) Nickname(port string) string { return "" }

type nopControl struct{}

func (nopControl) Pulse(port string) error { return nil }
func (nopControl) Sample(ctx context.Context, port string, baud int, window time.Duration) ([]byte, error) {
	return nil, nil
}

type fixedBaud int

func (b fixedBaud) DefaultBaud() int { return int(b) }

func newMonitorHandler(t *testing.T) *MonitorHandler {
	t.Helper()
	mgr := monitor.NewManager(monitor.Deps{
		Sink:      &fakeSink{},
		Buffer:    buffer.NewManager(0),
		Health:    health.New(),
		Installs:  nopInstalls{},
		Nicknames: nopNicknames{},
		Control:   nopControl{},
		// Not an executable: starts fail at spawn, which is exactly what
		// these handler tests need.
		CLIPath: "/nonexistent/arduino-cli-xyz",
	})
	return NewMonitorHandler(mgr, fixedBaud(115200))
}

func TestMonitorStartSpawnFailure(t *testing.T) {
	h := newMonitorHandler(t)

	rec := httptest.NewRecorder()
	h.HandleStart(rec, httptest.NewRequest(http.MethodPost, "/api/monitor/start",
		strings.NewReader(`{"port":"/dev/ttyUSB0"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Contains(t, body["error"], "spawn failed")
}

func TestMonitorStartRejectsBadBaud(t *testing.T) {
	h := newMonitorHandler(t)

	rec := httptest.NewRecorder()
	h.HandleStart(rec, httptest.NewRequest(http.MethodPost, "/api/monitor/start",
		strings.NewReader(`{"port":"/dev/ttyUSB0","baud":42}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitorStartRejectsBadPattern(t *testing.T) {
	h := newMonitorHandler(t)

	rec := httptest.NewRecorder()
	h.HandleStart(rec, httptest.NewRequest(http.MethodPost, "/api/monitor/start",
		strings.NewReader(`{"port":"/dev/ttyUSB0","stop_on":"[unclosed"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitorStopUnknownToken(t *testing.T) {
	h := newMonitorHandler(t)

	rec := httptest.NewRecorder()
	h.HandleStop(rec, httptest.NewRequest(http.MethodPost, "/api/monitor/stop",
		strings.NewReader(`{"token":"nope"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMonitorStopRequiresTokenOrPort(t *testing.T) {
	h := newMonitorHandler(t)

	rec := httptest.NewRecorder()
	h.HandleStop(rec, httptest.NewRequest(http.MethodPost, "/api/monitor/stop", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitorListEmpty(t *testing.T) {
	h := newMonitorHandler(t)

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/monitors", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Empty(t, body["monitors"])
}
