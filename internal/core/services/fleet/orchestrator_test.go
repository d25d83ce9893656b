package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

type fakeToolchain struct {
	mu       sync.Mutex
	compiles []string
	uploads  []string
	compileR domain.CompileResult
	uploadR  map[string]domain.UploadResult
}

func (f *fakeToolchain) Compile(ctx context.Context, sketchPath, fqbn, outputDir string) domain.CompileResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compiles = append(f.compiles, sketchPath)
	r := f.compileR
	r.Sketch = sketchPath
	r.FQBN = fqbn
	if r.OK && r.BuildPath == "" {
		r.BuildPath = outputDir
	}
	return r
}

func (f *fakeToolchain) Upload(ctx context.Context, port, buildPath, fqbn string) domain.UploadResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, port)
	if r, ok := f.uploadR[port]; ok {
		r.Port = port
		return r
	}
	return domain.UploadResult{OK: true, Port: port}
}

type fakeEnum struct{ records []domain.PortRecord }

func (f *fakeEnum) List(ctx context.Context) ([]domain.PortRecord, domain.PortScanDiagnostics) {
	return f.records, domain.PortScanDiagnostics{}
}

type fakeMonitors struct {
	mu      sync.Mutex
	stopped []string
	err     error
}

func (f *fakeMonitors) List() []domain.SessionSnapshot { return nil }

func (f *fakeMonitors) StopByPort(ctx context.Context, port string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, port)
	return f.err
}

type fakeControl struct {
	pulsed []string
	err    error
}

func (f *fakeControl) Pulse(port string) error {
	f.pulsed = append(f.pulsed, port)
	return f.err
}

func (f *fakeControl) Sample(ctx context.Context, port string, baud int, window time.Duration) ([]byte, error) {
	return nil, nil
}

type fakeResetter struct {
	resets []string
	err    error
}

func (f *fakeResetter) HardReset(ctx context.Context, port string) error {
	f.resets = append(f.resets, port)
	return f.err
}

type fakeWorkspace struct{ buildDir string }

func (f *fakeWorkspace) Config() domain.WorkspaceConfig {
	return domain.WorkspaceConfig{BuildOutputDir: f.buildDir, DefaultFQBN: "esp32:esp32:esp32"}
}

func (f *fakeWorkspace) DefaultFQBN() string { return "esp32:esp32:esp32" }

type auditEntry struct {
	action domain.AuditAction
	target string
	ok     bool
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (f *fakeAudit) Record(ctx context.Context, action domain.AuditAction, target, details string, ok bool, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{action: action, target: target, ok: ok})
}

func (f *fakeAudit) actions() []domain.AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditAction
	for _, e := range f.entries {
		out = append(out, e.action)
	}
	return out
}

type harness struct {
	toolchain *fakeToolchain
	enum      *fakeEnum
	monitors  *fakeMonitors
	control   *fakeControl
	resetter  *fakeResetter
	audit     *fakeAudit
	orch      *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		toolchain: &fakeToolchain{compileR: domain.CompileResult{OK: true}},
		enum:      &fakeEnum{},
		monitors:  &fakeMonitors{},
		control:   &fakeControl{},
		resetter:  &fakeResetter{},
		audit:     &fakeAudit{},
	}
	h.orch = NewOrchestrator(h.toolchain, h.enum, h.monitors, h.control, h.resetter,
		&fakeWorkspace{buildDir: t.TempDir()}, h.audit)
	h.orch.uploadSpacing = time.Millisecond
	return h
}

func targetPort(addr string) domain.PortRecord {
	return domain.PortRecord{Address: addr, TargetClass: true, Reachable: true}
}

func TestCompileUsesWorkspaceDefaults(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Compile(context.Background(), "/sketches/blink/blink.ino", "")

	assert.True(t, res.OK)
	assert.Equal(t, "esp32:esp32:esp32", res.FQBN)
	assert.Equal(t, []domain.AuditAction{domain.ActionCompile}, h.audit.actions())
}

func TestUploadVacatesPortFirst(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Upload(context.Background(), "/dev/ttyUSB0", "/builds/blink", "")

	assert.True(t, res.OK)
	assert.Equal(t, []string{"/dev/ttyUSB0"}, h.monitors.stopped)
	assert.Equal(t, []domain.AuditAction{domain.ActionUpload}, h.audit.actions())
}

func TestUploadRejectsInvalidPort(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Upload(context.Background(), "../etc", "/builds/blink", "")
	assert.False(t, res.OK)
	assert.Empty(t, h.toolchain.uploads)
}

func TestFlashAllCompilesOnceUploadsSequentially(t *testing.T) {
	h := newHarness(t)
	h.enum.records = []domain.PortRecord{
		targetPort("/dev/ttyUSB0"),
		{Address: "/dev/ttyS0"},
		targetPort("/dev/ttyUSB1"),
	}

	res := h.orch.FlashAll(context.Background(), "/sketches/blink/blink.ino", "")

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, h.toolchain.compiles, 1)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, h.toolchain.uploads)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, h.monitors.stopped)
}

func TestFlashAllContinuesPastFailedPort(t *testing.T) {
	h := newHarness(t)
	h.enum.records = []domain.PortRecord{targetPort("/dev/ttyUSB0"), targetPort("/dev/ttyUSB1")}
	h.toolchain.uploadR = map[string]domain.UploadResult{
		"/dev/ttyUSB0": {OK: false, Error: "Failed to connect"},
	}

	res := h.orch.FlashAll(context.Background(), "/sketches/blink/blink.ino", "")

	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Uploads, 2)
	assert.False(t, res.Uploads[0].OK)
	assert.True(t, res.Uploads[1].OK)
}

func TestFlashAllAbortsOnCompileFailure(t *testing.T) {
	h := newHarness(t)
	h.enum.records = []domain.PortRecord{targetPort("/dev/ttyUSB0")}
	h.toolchain.compileR = domain.CompileResult{OK: false, Error: "syntax error"}

	res := h.orch.FlashAll(context.Background(), "/sketches/blink/blink.ino", "")

	assert.False(t, res.Compile.OK)
	assert.Empty(t, res.Uploads)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, h.toolchain.uploads)
}

func TestFlashAllNoTargets(t *testing.T) {
	h := newHarness(t)
	h.enum.records = []domain.PortRecord{{Address: "/dev/ttyS0"}}

	res := h.orch.FlashAll(context.Background(), "/sketches/blink/blink.ino", "")
	assert.Equal(t, 0, res.Total)
	assert.True(t, res.Compile.OK)
	assert.Empty(t, res.Uploads)
}

func TestResetDevicePulse(t *testing.T) {
	h := newHarness(t)

	err := h.orch.ResetDevice(context.Background(), "/dev/ttyUSB0", domain.ResetPulse, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyUSB0"}, h.monitors.stopped)
	assert.Equal(t, []string{"/dev/ttyUSB0"}, h.control.pulsed)
	assert.Empty(t, h.resetter.resets)
}

func TestResetDeviceEsptool(t *testing.T) {
	h := newHarness(t)

	err := h.orch.ResetDevice(context.Background(), "/dev/ttyUSB0", domain.ResetTool, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyUSB0"}, h.resetter.resets)
	assert.Empty(t, h.control.pulsed)
}

func TestResetDeviceDefaultsToPulse(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.ResetDevice(context.Background(), "/dev/ttyUSB0", "", 0))
	assert.Equal(t, []string{"/dev/ttyUSB0"}, h.control.pulsed)
}

func TestResetDeviceUnknownMethod(t *testing.T) {
	h := newHarness(t)
	err := h.orch.ResetDevice(context.Background(), "/dev/ttyUSB0", "jtag", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResetDeviceToolFailureAudited(t *testing.T) {
	h := newHarness(t)
	h.resetter.err = errors.New("no response")

	err := h.orch.ResetDevice(context.Background(), "/dev/ttyUSB0", domain.ResetTool, 0)

	require.Error(t, err)
	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, domain.ActionDeviceReset, h.audit.entries[0].action)
	assert.False(t, h.audit.entries[0].ok)
}

func TestSketchName(t *testing.T) {
	assert.Equal(t, "blink", sketchName("/sketches/blink/blink.ino"))
	assert.Equal(t, "blink", sketchName("/sketches/blink"))
	assert.Equal(t, "sketch", sketchName(""))
}
