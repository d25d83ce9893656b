package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/web"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/web/handlers"
)

// Server owns the HTTP listener and the route handlers.
type Server struct {
	Addr        string
	AllowOrigin string
	StaticDir   string

	SSE       *web.SSEHandler
	WS        *web.WSManager
	Ports     *handlers.PortsHandler
	Monitor   *handlers.MonitorHandler
	Buffer    *handlers.BufferHandler
	Capture   *handlers.CaptureHandler
	Installs  *handlers.InstallLogHandler
	Health    *handlers.HealthHandler
	Fleet     *handlers.FleetHandler
	Spiffs    *handlers.SpiffsHandler
	Audit     *handlers.AuditHandler
	Report    *handlers.ReportHandler
	Lifecycle *handlers.ServerHandler

	srv *http.Server
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	handler := otelhttp.NewHandler(SetupRoutes(s), "fleetd-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("web server shutdown error", "error", err)
		}
	}()

	slog.Info("web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
