package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// TestHelperProcess stands in for the serial monitor subprocess. The
// scenario is selected by the mocked tool path (the first argument after
// the -- separator).
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, arg := range args {
		if arg == "--" && i+1 < len(args) {
			args = args[i+1:]
			break
		}
	}
	scenario := ""
	if len(args) > 0 {
		scenario = args[0]
	}

	switch scenario {
	case "boot":
		fmt.Println("line A")
		fmt.Println("line B")
		fmt.Println("line C")
		os.Exit(0)
	case "crash":
		fmt.Println("line A")
		fmt.Println("line B")
		fmt.Println("Guru Meditation Error: Core  1 panic'ed (LoadProhibited)")
		fmt.Println("rst:0x1 (POWERON_RESET)")
		fmt.Println("line C")
		os.Exit(0)
	case "ready":
		fmt.Println("booting")
		fmt.Println("wifi up")
		fmt.Println("READY")
		fmt.Println("after ready 1")
		fmt.Println("after ready 2")
		time.Sleep(5 * time.Second)
		os.Exit(0)
	case "count":
		for i := 1; i <= 10; i++ {
			fmt.Printf("line %d\n", i)
		}
		time.Sleep(5 * time.Second)
		os.Exit(0)
	case "sleep":
		fmt.Println("alive")
		time.Sleep(5 * time.Second)
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "monitor error: port disappeared")
		os.Exit(2)
	case "cr":
		fmt.Print("first\rsecond\nthird\n")
		os.Exit(0)
	}
	os.Exit(0)
}

func mockExecCommandContext(ctx context.Context, name string, arg ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", name}
	cs = append(cs, arg...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func withMockExec(t *testing.T) {
	t.Helper()
	orig := execCommandContext
	execCommandContext = mockExecCommandContext
	t.Cleanup(func() { execCommandContext = orig })
}

type fakeSink struct {
	mu     sync.Mutex
	events []domain.SerialEvent
}

func (f *fakeSink) Publish(ev domain.SerialEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeSink) all() []domain.SerialEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SerialEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeSink) lines() []string {
	var out []string
	for _, ev := range f.all() {
		if ev.Type == domain.EventSerial {
			out = append(out, ev.Line)
		}
	}
	return out
}

type fakeBuffer struct {
	mu     sync.Mutex
	events []domain.SerialEvent
}

func (f *fakeBuffer) Append(port string, ev domain.SerialEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

type signalObs struct {
	line   string
	reboot bool
}

type fakeHealth struct {
	mu      sync.Mutex
	lines   int
	signals []signalObs
}

func (f *fakeHealth) ObserveLine(ev domain.SerialEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines++
}

func (f *fakeHealth) ObserveSignal(port, line string, reboot bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signalObs{line: line, reboot: reboot})
}

type fakeInstalls struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeInstalls) ScanLine(port, nickname, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
}

type fakeNicknames struct{ name string }

func (f *fakeNicknames) Nickname(port string) string { return f.name }

type fakeControl struct{}

func (fakeControl) Pulse(port string) error { return nil }
func (fakeControl) Sample(ctx context.Context, port string, baud int, window time.Duration) ([]byte, error) {
	return nil, nil
}

type fixture struct {
	sink     *fakeSink
	buffer   *fakeBuffer
	health   *fakeHealth
	installs *fakeInstalls
	mgr      *Manager
}

func newFixture(t *testing.T, scenario string) *fixture {
	t.Helper()
	withMockExec(t)
	f := &fixture{
		sink:     &fakeSink{},
		buffer:   &fakeBuffer{},
		health:   &fakeHealth{},
		installs: &fakeInstalls{},
	}
	f.mgr = NewManager(Deps{
		Sink:      f.sink,
		Buffer:    f.buffer,
		Health:    f.health,
		Installs:  f.installs,
		Nicknames: &fakeNicknames{name: "bench-1"},
		Control:   fakeControl{},
		CLIPath:   scenario,
	})
	return f
}

func waitDone(t *testing.T, s *Session) domain.SessionSummary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum, err := s.Wait(ctx)
	require.NoError(t, err)
	return sum
}

func TestSessionStreamsLinesInOrder(t *testing.T) {
	f := newFixture(t, "boot")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)
	sum := waitDone(t, s)

	assert.Equal(t, []string{"line A", "line B", "line C"}, f.sink.lines())
	assert.Equal(t, domain.StopCompleted, sum.Reason)
	assert.Equal(t, int64(3), sum.Lines)
	assert.Equal(t, "line C", sum.LastLine)
	assert.Equal(t, 0, sum.ExitCode)

	events := f.sink.all()
	require.NotEmpty(t, events)
	assert.Equal(t, "bench-1", events[0].Nickname)
	assert.Equal(t, int64(1), events[0].LineNumber)
	assert.Equal(t, domain.EventSerialEnd, events[len(events)-1].Type)
}

func TestSessionDetectsCrashAndRebootByDefault(t *testing.T) {
	f := newFixture(t, "crash")

	// No detect_reboot option: detection is on unless explicitly disabled.
	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{
		Port: "/dev/ttyUSB0",
	})
	require.NoError(t, err)
	sum := waitDone(t, s)

	assert.True(t, sum.RebootDetected)
	require.Len(t, f.health.signals, 2)
	assert.False(t, f.health.signals[0].reboot, "Guru Meditation is a crash")
	assert.True(t, f.health.signals[1].reboot, "rst:0x line is a reboot")
	// Lines after the crash still stream.
	assert.Contains(t, f.sink.lines(), "line C")
}

func TestSessionDetectRebootExplicitlyDisabled(t *testing.T) {
	f := newFixture(t, "crash")

	off := false
	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{
		Port:         "/dev/ttyUSB0",
		DetectReboot: &off,
	})
	require.NoError(t, err)
	sum := waitDone(t, s)

	assert.False(t, sum.RebootDetected)
	assert.Empty(t, f.health.signals)
	assert.Contains(t, f.sink.lines(), "line C")
}

func TestSessionStopsOnPattern(t *testing.T) {
	f := newFixture(t, "ready")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{
		Port:   "/dev/ttyUSB0",
		StopOn: "READY",
	})
	require.NoError(t, err)
	sum := waitDone(t, s)

	assert.Equal(t, domain.StopPatternMatch, sum.Reason)
	assert.Equal(t, "READY", sum.LastLine)
	// The matching line itself is emitted; nothing after it is.
	lines := f.sink.lines()
	assert.Contains(t, lines, "READY")
	assert.NotContains(t, lines, "after ready 1")
}

func TestSessionStopsOnLineLimit(t *testing.T) {
	f := newFixture(t, "count")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{
		Port:     "/dev/ttyUSB0",
		MaxLines: 3,
	})
	require.NoError(t, err)
	sum := waitDone(t, s)

	assert.Equal(t, domain.StopLineLimit, sum.Reason)
	assert.Equal(t, int64(3), sum.Lines)
	assert.Equal(t, []string{"line 1", "line 2", "line 3"}, f.sink.lines())
}

func TestSessionStopsOnTimeLimit(t *testing.T) {
	f := newFixture(t, "sleep")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{
		Port:       "/dev/ttyUSB0",
		MaxSeconds: 1,
	})
	require.NoError(t, err)
	sum := waitDone(t, s)

	assert.Equal(t, domain.StopTimeLimit, sum.Reason)
}

func TestSessionManualStop(t *testing.T) {
	f := newFixture(t, "sleep")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(f.sink.lines()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	sum, err := f.mgr.Stop(context.Background(), s.Token())
	require.NoError(t, err)
	assert.Equal(t, domain.StopManual, sum.Reason)
	assert.NotEqual(t, 0, sum.ExitCode)
}

func TestSessionStopIsIdempotent(t *testing.T) {
	f := newFixture(t, "sleep")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)

	s.Stop()
	s.Stop()
	first := waitDone(t, s)
	second := waitDone(t, s)
	assert.Equal(t, first, second)
}

func TestSessionNonZeroExitIsError(t *testing.T) {
	f := newFixture(t, "fail")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)
	sum := waitDone(t, s)

	assert.Equal(t, domain.StopError, sum.Reason)
	assert.Equal(t, 2, sum.ExitCode)
	// stderr output still streams through the ordered path.
	assert.Contains(t, f.sink.lines(), "monitor error: port disappeared")
}

func TestSessionFramesOnBareCarriageReturn(t *testing.T) {
	f := newFixture(t, "cr")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)
	waitDone(t, s)

	assert.Equal(t, []string{"first", "second", "third"}, f.sink.lines())
}

func TestManagerRejectsBusyPort(t *testing.T) {
	f := newFixture(t, "sleep")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)

	_, err = f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	assert.ErrorIs(t, err, domain.ErrPortBusy)

	// A different port is fine.
	other, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB1"})
	require.NoError(t, err)

	s.Stop()
	other.Stop()
	waitDone(t, s)
	waitDone(t, other)
}

func TestManagerReleasesPortAfterTermination(t *testing.T) {
	f := newFixture(t, "boot")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)
	waitDone(t, s)

	require.Eventually(t, func() bool {
		_, err := f.mgr.GetByPort("/dev/ttyUSB0")
		return errors.Is(err, domain.ErrSessionNotFound)
	}, 2*time.Second, 10*time.Millisecond)

	again, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)
	waitDone(t, again)
}

func TestManagerRejectsInvalidPort(t *testing.T) {
	f := newFixture(t, "boot")

	_, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "../../etc/shadow"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.mgr.List())
}

func TestManagerRejectsInvalidStopPattern(t *testing.T) {
	f := newFixture(t, "boot")

	_, err := f.mgr.Start(context.Background(), domain.MonitorOptions{
		Port:   "/dev/ttyUSB0",
		StopOn: "[unclosed",
	})
	assert.ErrorIs(t, err, domain.ErrPatternInvalid)
	assert.Empty(t, f.mgr.List())
}

func TestManagerSpawnFailureReleasesPort(t *testing.T) {
	// No mock exec: the scenario name is not an executable.
	f := &fixture{sink: &fakeSink{}, buffer: &fakeBuffer{}, health: &fakeHealth{}, installs: &fakeInstalls{}}
	f.mgr = NewManager(Deps{
		Sink:      f.sink,
		Buffer:    f.buffer,
		Health:    f.health,
		Installs:  f.installs,
		Nicknames: &fakeNicknames{},
		Control:   fakeControl{},
		CLIPath:   "/nonexistent/arduino-cli-xyz",
	})

	_, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.ErrorIs(t, err, domain.ErrSpawnFailed)

	// Port is free for the next attempt.
	_, err = f.mgr.GetByPort("/dev/ttyUSB0")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManagerStopByPortMissingSessionIsNoop(t *testing.T) {
	f := newFixture(t, "boot")
	assert.NoError(t, f.mgr.StopByPort(context.Background(), "/dev/ttyUSB9"))
}

func TestManagerListSnapshots(t *testing.T) {
	f := newFixture(t, "sleep")

	b, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB1"})
	require.NoError(t, err)
	a, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)

	snaps := f.mgr.List()
	require.Len(t, snaps, 2)
	assert.Equal(t, "/dev/ttyUSB0", snaps[0].Port)
	assert.Equal(t, "/dev/ttyUSB1", snaps[1].Port)
	assert.Equal(t, "bench-1", snaps[0].Nickname)
	assert.Equal(t, domain.DefaultBaud, snaps[0].Baud)

	a.Stop()
	b.Stop()
	waitDone(t, a)
	waitDone(t, b)
}

func TestSessionScansInstallLines(t *testing.T) {
	f := newFixture(t, "boot")

	s, err := f.mgr.Start(context.Background(), domain.MonitorOptions{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)
	waitDone(t, s)

	f.installs.mu.Lock()
	defer f.installs.mu.Unlock()
	assert.Equal(t, []string{"line A", "line B", "line C"}, f.installs.lines)
}
