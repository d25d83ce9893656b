package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/telemetry"
)

const (
	compileTimeout = 5 * time.Minute
	uploadTimeout  = 2 * time.Minute
	resetTimeout   = 30 * time.Second
)

// ArduinoCLI wraps the board toolchain binary. Compile and upload
// failures are reported in the result so a fleet run can continue past a
// failed port.
type ArduinoCLI struct {
	runner  ports.Runner
	cliPath string
}

func NewArduinoCLI(runner ports.Runner, cliPath string) *ArduinoCLI {
	return &ArduinoCLI{runner: runner, cliPath: cliPath}
}

// Compile builds a sketch for the given target and leaves the binaries in
// outputDir.
func (a *ArduinoCLI) Compile(ctx context.Context, sketchPath, fqbn, outputDir string) domain.CompileResult {
	result := domain.CompileResult{Sketch: sketchPath, FQBN: fqbn}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		result.Error = fmt.Sprintf("create output dir: %v", err)
		return result
	}

	res, err := a.runner.Run(ctx, domain.CommandSpec{
		Path: a.cliPath,
		Args: []string{
			"compile",
			"--fqbn", fqbn,
			"--output-dir", outputDir,
			"--warnings", "default",
			sketchPath,
		},
		Timeout: compileTimeout,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.DurationMs = res.Duration.Milliseconds()
	result.Output = combineOutput(res)
	if res.TimedOut {
		result.Error = "compile timed out"
		return result
	}
	if res.ExitCode != 0 {
		result.Error = fmt.Sprintf("compile exited with code %d", res.ExitCode)
		return result
	}

	result.OK = true
	result.BuildPath = outputDir
	result.Binaries = listBinaries(outputDir)
	slog.Info("compile finished", "sketch", sketchPath, "fqbn", fqbn, "binaries", len(result.Binaries), "durationMs", result.DurationMs)
	return result
}

// Upload flashes a previously compiled build onto the device at port.
func (a *ArduinoCLI) Upload(ctx context.Context, port, buildPath, fqbn string) domain.UploadResult {
	result := domain.UploadResult{Port: port}

	res, err := a.runner.Run(ctx, domain.CommandSpec{
		Path: a.cliPath,
		Args: []string{
			"upload",
			"-p", port,
			"--fqbn", fqbn,
			"--input-dir", buildPath,
		},
		Timeout: uploadTimeout,
	})
	if err != nil {
		result.Error = err.Error()
		telemetry.UploadsTotal.WithLabelValues("error").Inc()
		return result
	}

	result.DurationMs = res.Duration.Milliseconds()
	result.Output = combineOutput(res)
	switch {
	case res.TimedOut:
		result.Error = "upload timed out"
		telemetry.UploadsTotal.WithLabelValues("timeout").Inc()
	case res.ExitCode != 0:
		result.Error = fmt.Sprintf("upload exited with code %d", res.ExitCode)
		telemetry.UploadsTotal.WithLabelValues("failed").Inc()
	default:
		result.OK = true
		telemetry.UploadsTotal.WithLabelValues("ok").Inc()
		slog.Info("upload finished", "port", port, "durationMs", result.DurationMs)
	}
	return result
}

var _ ports.Toolchain = (*ArduinoCLI)(nil)

// listBinaries collects flashable artifacts from a build directory,
// sorted for stable output.
func listBinaries(dir string) []string {
	var out []string
	for _, pattern := range []string{"*.bin", "*.elf", "*.partitions.bin"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return dedupe(out)
}

func dedupe(in []string) []string {
	out := in[:0]
	var prev string
	for _, s := range in {
		if s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}

func combineOutput(res domain.CommandResult) string {
	if res.Stderr == "" {
		return res.Stdout
	}
	if res.Stdout == "" {
		return res.Stderr
	}
	return res.Stdout + "\n" + res.Stderr
}

// Esptool wraps the vendor flash utility, used only for its hard-reset
// side effect.
type Esptool struct {
	runner ports.Runner
	path   string
}

func NewEsptool(runner ports.Runner, path string) *Esptool {
	return &Esptool{runner: runner, path: path}
}

// HardReset strobes the chip through a vendor-tool invocation whose
// --after hard_reset epilogue reboots the device.
func (e *Esptool) HardReset(ctx context.Context, port string) error {
	res, err := e.runner.Run(ctx, domain.CommandSpec{
		Path: e.path,
		Args: []string{
			"--port", port,
			"--before", "default_reset",
			"--after", "hard_reset",
			"chip_id",
		},
		Timeout: resetTimeout,
	})
	if err != nil {
		return err
	}
	if res.TimedOut {
		return fmt.Errorf("%w: reset timed out on %s", domain.ErrPortUnreachable, port)
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(res.Stdout)
		}
		return fmt.Errorf("%w: reset tool exited %d on %s: %s", domain.ErrPortUnreachable, res.ExitCode, port, detail)
	}
	slog.Info("hard reset issued", "port", port)
	return nil
}

var _ ports.DeviceResetter = (*Esptool)(nil)
