package ports

import (
	"context"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// EventSink accepts serial events for fan-out. Publish must never block
// on slow consumers.
type EventSink interface {
	Publish(event domain.SerialEvent)
}

// BufferAppender is the narrow write side of the ring-buffer manager used
// by monitor sessions. Appending also drives active captures.
type BufferAppender interface {
	Append(port string, event domain.SerialEvent)
}

// HealthObserver receives per-line and per-signal health updates inline on
// the publish path. Implementations must be fast and non-blocking.
type HealthObserver interface {
	ObserveLine(event domain.SerialEvent)
	ObserveSignal(port, line string, reboot bool)
}

// InstallScanner inspects framed lines for registration records.
type InstallScanner interface {
	ScanLine(port, nickname, line string)
}

// NicknameSource resolves the user label for a port address, empty when
// none is configured.
type NicknameSource interface {
	Nickname(port string) string
}

// PortControl drives serial line signals and baud probing without holding
// the port beyond each call.
type PortControl interface {
	// Pulse performs the DTR/RTS boot-reset toggle.
	Pulse(port string) error
	// Sample opens the port at the given rate and collects bytes for
	// roughly the window duration.
	Sample(ctx context.Context, port string, baud int, window time.Duration) ([]byte, error)
}

// Runner executes external tools. A non-zero exit is reported in the
// result, not as an error; the error return covers spawn failures only.
type Runner interface {
	Run(ctx context.Context, spec domain.CommandSpec) (domain.CommandResult, error)
}

// Enumerator lists serial endpoints with target-class tagging.
type Enumerator interface {
	List(ctx context.Context) ([]domain.PortRecord, domain.PortScanDiagnostics)
}

// MonitorRegistry is the session lookup surface other services need. The
// fleet orchestrator uses StopByPort to vacate a port before flashing.
type MonitorRegistry interface {
	List() []domain.SessionSnapshot
	StopByPort(ctx context.Context, port string) error
}

// Toolchain wraps the external build tool invocations.
type Toolchain interface {
	Compile(ctx context.Context, sketchPath, fqbn, outputDir string) domain.CompileResult
	Upload(ctx context.Context, port, buildPath, fqbn string) domain.UploadResult
}

// DeviceResetter performs a vendor-tool hard reset of the device on a port.
type DeviceResetter interface {
	HardReset(ctx context.Context, port string) error
}
