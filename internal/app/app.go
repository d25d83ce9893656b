package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/monitor"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/reporting"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/runner"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/serialport"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/storage"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/toolchain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/web"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/web/handlers"
	webserver "github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/web/server"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/config"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/audit"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/broadcast"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/buffer"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/fleet"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/health"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/installlog"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/services/workspace"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/telemetry"
)

// Application wires the service graph and owns its run lifecycle. It is
// the composition root: everything below it takes interfaces, nothing
// below it reads config.
type Application struct {
	Config      *config.Config
	Workspace   *workspace.Manager
	Broadcaster *broadcast.Broadcaster
	Buffers     *buffer.Manager
	Monitors    *monitor.Manager
	WebServer   *webserver.Server

	store    *storage.SQLiteStore
	shutdown context.CancelFunc
}

// New builds the full dependency graph. The returned application is
// ready to Run; nothing is listening yet.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}

	telemetry.InitMetrics()

	ws, err := workspace.NewManager(cfg.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("workspace init: %w", err)
	}
	app.Workspace = ws

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("db directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("audit storage init: %w", err)
	}
	app.store = store

	installStore, err := storage.NewJSONLInstallLogStore(filepath.Join(cfg.WorkspaceDir, "install_logs.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("install log storage init: %w", err)
	}

	app.Broadcaster = broadcast.New(0, 0)
	app.Buffers = buffer.NewManager(0)
	healthSvc := health.New()
	installs := installlog.New(installStore, app.Broadcaster, cfg.DedupWindow)
	auditSvc := audit.NewService(store)

	run := runner.New()
	cliPath := resolveArduinoCLI(cfg.ArduinoCLIPath)
	control := serialport.NewControl()
	enum := serialport.NewEnumerator(cliPath, cfg.DefaultFQBN, run, ws)

	app.Monitors = monitor.NewManager(monitor.Deps{
		Sink:      app.Broadcaster,
		Buffer:    app.Buffers,
		Health:    healthSvc,
		Installs:  installs,
		Nicknames: ws,
		Control:   control,
		CLIPath:   cliPath,
	})

	cli := toolchain.NewArduinoCLI(run, cliPath)
	esptool := toolchain.NewEsptool(run, cfg.EsptoolPath)
	orch := fleet.NewOrchestrator(cli, enum, app.Monitors, control, esptool, ws, auditSvc)
	spiffs := fleet.NewSpiffsClient(cfg.InsecureDeviceTLS)

	app.WebServer = &webserver.Server{
		Addr:        cfg.Addr,
		AllowOrigin: cfg.AllowOrigin,
		StaticDir:   cfg.StaticDir,
		SSE:         web.NewSSEHandler(app.Broadcaster),
		WS:          web.NewWSManager(app.Broadcaster),
		Ports:       handlers.NewPortsHandler(enum, ws),
		Monitor:     handlers.NewMonitorHandler(app.Monitors, ws),
		Buffer:      handlers.NewBufferHandler(app.Buffers),
		Capture:     handlers.NewCaptureHandler(app.Buffers),
		Installs:    handlers.NewInstallLogHandler(installs),
		Health:      handlers.NewHealthHandler(healthSvc),
		Fleet:       handlers.NewFleetHandler(orch),
		Spiffs:      handlers.NewSpiffsHandler(spiffs),
		Audit:       handlers.NewAuditHandler(auditSvc),
		Report:      handlers.NewReportHandler(enum, app.Monitors, healthSvc, installs, reporting.NewPDFExporter()),
		Lifecycle:   handlers.NewServerHandler(app.requestShutdown),
	}

	return app, nil
}

// Run serves until the context is cancelled, the restart endpoint fires,
// or the web server fails. Monitor sessions are stopped before return.
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.shutdown = cancel

	go app.Broadcaster.Run(ctx)

	go func() {
		if err := app.Workspace.Watch(ctx); err != nil {
			slog.Warn("workspace config watch unavailable", "error", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server: %w", err)
		}
		close(errChan)
	}()

	slog.Info("fleetd ready", "addr", app.Config.Addr, "workspace", app.Config.WorkspaceDir)

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errChan:
		if ok {
			runErr = err
		}
		cancel()
	}

	app.cleanup()
	return runErr
}

// requestShutdown is handed to the restart endpoint. An external
// supervisor is expected to bring the process back up.
func (app *Application) requestShutdown() {
	slog.Info("restart requested, shutting down")
	if app.shutdown != nil {
		app.shutdown()
	}
}

func (app *Application) cleanup() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if n := len(app.Monitors.List()); n > 0 {
		slog.Info("stopping monitor sessions", "count", n)
	}
	app.Monitors.StopAll(stopCtx)
	if err := app.store.Close(); err != nil {
		slog.Error("audit storage close", "error", err)
	}
}

// resolveArduinoCLI picks the toolchain binary: explicit config wins,
// then a vendored copy next to the executable, then PATH. The bare name
// is returned as a last resort so the spawn error names the tool.
func resolveArduinoCLI(configured string) string {
	if configured != "" {
		return configured
	}
	if exe, err := os.Executable(); err == nil {
		vendored := filepath.Join(filepath.Dir(exe), "bin", "arduino-cli")
		if info, err := os.Stat(vendored); err == nil && !info.IsDir() {
			return vendored
		}
	}
	if path, err := exec.LookPath("arduino-cli"); err == nil {
		return path
	}
	return "arduino-cli"
}
