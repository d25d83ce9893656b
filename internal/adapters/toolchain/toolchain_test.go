package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

type fakeRunner struct {
	specs   []domain.CommandSpec
	results []domain.CommandResult
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, spec domain.CommandSpec) (domain.CommandResult, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return domain.CommandResult{}, f.err
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

func TestCompileSuccessCollectsBinaries(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "blink.ino.bin"), []byte("fw"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(out, "blink.ino.elf"), []byte("elf"), 0644))

	r := &fakeRunner{results: []domain.CommandResult{{ExitCode: 0, Stdout: "Sketch uses 250000 bytes", Duration: 3 * time.Second}}}
	cli := NewArduinoCLI(r, "arduino-cli")

	res := cli.Compile(context.Background(), "/sketches/blink/blink.ino", "esp32:esp32:esp32", out)

	assert.True(t, res.OK)
	assert.Equal(t, out, res.BuildPath)
	assert.Len(t, res.Binaries, 2)
	assert.Equal(t, int64(3000), res.DurationMs)

	require.Len(t, r.specs, 1)
	assert.Equal(t, "arduino-cli", r.specs[0].Path)
	assert.Contains(t, r.specs[0].Args, "--fqbn")
	assert.Contains(t, r.specs[0].Args, "esp32:esp32:esp32")
	assert.Contains(t, r.specs[0].Args, "/sketches/blink/blink.ino")
}

func TestCompileFailureCarriesOutput(t *testing.T) {
	r := &fakeRunner{results: []domain.CommandResult{{ExitCode: 1, Stderr: "blink.ino:5: error: expected ';'"}}}
	cli := NewArduinoCLI(r, "arduino-cli")

	res := cli.Compile(context.Background(), "/sketches/blink/blink.ino", "esp32:esp32:esp32", t.TempDir())

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "exited with code 1")
	assert.Contains(t, res.Output, "expected ';'")
}

func TestCompileTimeout(t *testing.T) {
	r := &fakeRunner{results: []domain.CommandResult{{ExitCode: -1, TimedOut: true}}}
	cli := NewArduinoCLI(r, "arduino-cli")

	res := cli.Compile(context.Background(), "/sketches/blink/blink.ino", "esp32:esp32:esp32", t.TempDir())
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "timed out")
}

func TestCompileSpawnFailure(t *testing.T) {
	r := &fakeRunner{err: errors.New("spawn failed: no such file")}
	cli := NewArduinoCLI(r, "/missing/arduino-cli")

	res := cli.Compile(context.Background(), "/sketches/blink/blink.ino", "esp32:esp32:esp32", t.TempDir())
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "spawn failed")
}

func TestUploadSuccess(t *testing.T) {
	r := &fakeRunner{results: []domain.CommandResult{{ExitCode: 0, Stdout: "Hash of data verified.", Duration: 12 * time.Second}}}
	cli := NewArduinoCLI(r, "arduino-cli")

	res := cli.Upload(context.Background(), "/dev/ttyUSB0", "/ws/builds/blink", "esp32:esp32:esp32")

	assert.True(t, res.OK)
	assert.Equal(t, "/dev/ttyUSB0", res.Port)
	assert.Equal(t, int64(12000), res.DurationMs)

	require.Len(t, r.specs, 1)
	assert.Equal(t, []string{"upload", "-p", "/dev/ttyUSB0", "--fqbn", "esp32:esp32:esp32", "--input-dir", "/ws/builds/blink"}, r.specs[0].Args)
}

func TestUploadFailure(t *testing.T) {
	r := &fakeRunner{results: []domain.CommandResult{{ExitCode: 2, Stderr: "A fatal error occurred: Failed to connect"}}}
	cli := NewArduinoCLI(r, "arduino-cli")

	res := cli.Upload(context.Background(), "/dev/ttyUSB0", "/ws/builds/blink", "esp32:esp32:esp32")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "exited with code 2")
	assert.Contains(t, res.Output, "Failed to connect")
}

func TestHardResetSuccess(t *testing.T) {
	r := &fakeRunner{results: []domain.CommandResult{{ExitCode: 0, Stdout: "Chip is ESP32-D0WDQ6"}}}
	tool := NewEsptool(r, "esptool.py")

	require.NoError(t, tool.HardReset(context.Background(), "/dev/ttyUSB0"))

	require.Len(t, r.specs, 1)
	assert.Equal(t, []string{"--port", "/dev/ttyUSB0", "--before", "default_reset", "--after", "hard_reset", "chip_id"}, r.specs[0].Args)
}

func TestHardResetFailure(t *testing.T) {
	r := &fakeRunner{results: []domain.CommandResult{{ExitCode: 2, Stderr: "serial.serialutil.SerialException"}}}
	tool := NewEsptool(r, "esptool.py")

	err := tool.HardReset(context.Background(), "/dev/ttyUSB0")
	assert.ErrorIs(t, err, domain.ErrPortUnreachable)
	assert.Contains(t, err.Error(), "SerialException")
}
