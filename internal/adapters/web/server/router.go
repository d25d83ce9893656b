package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/web/middleware"
)

// SetupRoutes builds the full route table.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.CORSMiddleware(s.AllowOrigin))

	// Event streams.
	r.Handle("/events", s.SSE).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.WS.HandleWebSocket).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Ports and nicknames.
	api.HandleFunc("/ports", s.Ports.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/port-nicknames", s.Ports.HandleGetNicknames).Methods(http.MethodGet)
	api.HandleFunc("/port-nicknames", s.Ports.HandleSetNickname).Methods(http.MethodPost)

	// Monitor sessions.
	api.HandleFunc("/monitor/start", s.Monitor.HandleStart).Methods(http.MethodPost)
	api.HandleFunc("/monitor/stop", s.Monitor.HandleStop).Methods(http.MethodPost)
	api.HandleFunc("/monitor/stop-all", s.Monitor.HandleStopAll).Methods(http.MethodPost)
	api.HandleFunc("/monitors", s.Monitor.HandleList).Methods(http.MethodGet)

	// Ring buffers.
	api.HandleFunc("/buffer", s.Buffer.HandleRead).Methods(http.MethodGet)
	api.HandleFunc("/buffer-stats", s.Buffer.HandleStats).Methods(http.MethodGet)
	api.HandleFunc("/buffer/clear", s.Buffer.HandleClear).Methods(http.MethodPost)

	// Pattern captures.
	api.HandleFunc("/capture/start", s.Capture.HandleStart).Methods(http.MethodPost)
	api.HandleFunc("/capture/wait", s.Capture.HandleWait).Methods(http.MethodPost)
	api.HandleFunc("/capture/cancel", s.Capture.HandleCancel).Methods(http.MethodPost)
	api.HandleFunc("/captures", s.Capture.HandleList).Methods(http.MethodGet)

	// Install log.
	api.HandleFunc("/install-logs", s.Installs.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/install-logs", s.Installs.HandleSubmit).Methods(http.MethodPost)

	// Health.
	api.HandleFunc("/device-health", s.Health.HandleReport).Methods(http.MethodGet)

	// Fleet operations.
	api.HandleFunc("/compile", s.Fleet.HandleCompile).Methods(http.MethodPost)
	api.HandleFunc("/upload", s.Fleet.HandleUpload).Methods(http.MethodPost)
	api.HandleFunc("/flash-all", s.Fleet.HandleFlashAll).Methods(http.MethodPost)
	api.HandleFunc("/reset-device", s.Fleet.HandleResetDevice).Methods(http.MethodPost)

	// Device filesystem proxy.
	api.HandleFunc("/spiffs/list", s.Spiffs.HandleList).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/spiffs/read", s.Spiffs.HandleRead).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/spiffs/write", s.Spiffs.HandleWrite).Methods(http.MethodPost)
	api.HandleFunc("/spiffs/delete", s.Spiffs.HandleDelete).Methods(http.MethodPost, http.MethodDelete)
	api.HandleFunc("/spiffs/info", s.Spiffs.HandleInfo).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/spiffs/format", s.Spiffs.HandleFormat).Methods(http.MethodPost)

	// Audit trail and reports.
	api.HandleFunc("/audit-logs", s.Audit.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/reports/fleet", s.Report.HandleFleetReport).Methods(http.MethodGet)

	// Lifecycle.
	api.HandleFunc("/server/restart", s.Lifecycle.HandleRestart).Methods(http.MethodPost)

	// Metrics.
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Console front-end.
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))

	return r
}
