package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// TestHelperProcess isn't a real test. It stands in for the external
// tools the runner spawns.
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
	// args[0] is the mocked tool path; args[1] selects behaviour.
	mode := ""
	if len(args) > 1 {
		mode = args[1]
	}

	switch mode {
	case "ok":
		fmt.Println("tool output")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "tool failure detail")
		os.Exit(2)
	case "slow":
		time.Sleep(5 * time.Second)
		os.Exit(0)
	case "stream":
		for i := 1; i <= 3; i++ {
			fmt.Printf("line %d\n", i)
		}
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

func TestRunCapturesOutput(t *testing.T) {
	withMockExec(t)
	r := New()

	res, err := r.Run(context.Background(), domain.CommandSpec{Path: "tool", Args: []string{"ok"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "tool output")
	assert.False(t, res.TimedOut)
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	withMockExec(t)
	r := New()

	res, err := r.Run(context.Background(), domain.CommandSpec{Path: "tool", Args: []string{"fail"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Stderr, "tool failure detail")
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	withMockExec(t)
	r := New()

	start := time.Now()
	res, err := r.Run(context.Background(), domain.CommandSpec{
		Path:    "tool",
		Args:    []string{"slow"},
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunSpawnFailure(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), domain.CommandSpec{Path: "/nonexistent/tool-xyz"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSpawnFailed)
}

func TestStartStreamsStdout(t *testing.T) {
	withMockExec(t)
	r := New()

	proc, err := r.Start(context.Background(), domain.CommandSpec{Path: "tool", Args: []string{"stream"}})
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(proc.Stdout)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	code := proc.Wait()

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"line 1", "line 2", "line 3"}, lines)
}

func TestStopTerminatesStreamingProcess(t *testing.T) {
	withMockExec(t)
	r := New()

	proc, err := r.Start(context.Background(), domain.CommandSpec{Path: "tool", Args: []string{"slow"}})
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() { done <- proc.Wait() }()
	proc.Stop(100 * time.Millisecond)

	select {
	case code := <-done:
		assert.NotEqual(t, 0, code)
	case <-time.After(3 * time.Second):
		t.Fatal("process did not terminate after Stop")
	}
}

func TestExitCodeMapping(t *testing.T) {
	withMockExec(t)

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(fmt.Errorf("pipe broke")))

	cmd := execCommandContext(context.Background(), "tool", "fail")
	require.NoError(t, cmd.Start())
	assert.Equal(t, 2, ExitCode(cmd.Wait()))
}

func TestStopGroupTerminatesWholeGroup(t *testing.T) {
	withMockExec(t)

	cmd := execCommandContext(context.Background(), "tool", "slow")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	require.NoError(t, cmd.Start())

	StopGroup(cmd.Process.Pid, 100*time.Millisecond)

	done := make(chan int, 1)
	go func() { done <- ExitCode(cmd.Wait()) }()
	select {
	case code := <-done:
		assert.Equal(t, 128+int(syscall.SIGTERM), code)
	case <-time.After(3 * time.Second):
		t.Fatal("process group survived StopGroup")
	}
}
