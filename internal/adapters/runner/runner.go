package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// execCommandContext allows mocking exec.CommandContext in tests.
var execCommandContext = exec.CommandContext

// DefaultGrace is the window between SIGTERM and SIGKILL on Stop.
const DefaultGrace = 1 * time.Second

// Runner executes external tools. A non-zero exit is an outcome reported
// in the result; the error return covers spawn failures only.
type Runner struct{}

// New creates a Runner.
func New() *Runner {
	return &Runner{}
}

// Run executes the command to completion, capturing stdout and stderr.
// When spec.Timeout is set the process group is killed at the deadline and
// the result carries TimedOut.
func (r *Runner) Run(ctx context.Context, spec domain.CommandSpec) (domain.CommandResult, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := execCommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return domain.CommandResult{ExitCode: -1}, fmt.Errorf("%w: %s: %v", domain.ErrSpawnFailed, spec.Path, err)
	}
	waitErr := cmd.Wait()

	res := domain.CommandResult{
		ExitCode: ExitCode(waitErr),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		Duration: time.Since(start),
	}
	return res, nil
}

// Proc is a streaming subprocess. The caller frames stdout/stderr itself
// and must call Wait exactly once after both pipes are drained.
type Proc struct {
	cmd    *exec.Cmd
	Stdout io.ReadCloser
	Stderr io.ReadCloser
}

// Start spawns a streaming subprocess with its own process group.
func (r *Runner) Start(ctx context.Context, spec domain.CommandSpec) (*Proc, error) {
	cmd := execCommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSpawnFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSpawnFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSpawnFailed, spec.Path, err)
	}
	return &Proc{cmd: cmd, Stdout: stdout, Stderr: stderr}, nil
}

// Stop signals the process group with SIGTERM and escalates to SIGKILL
// after the grace period. Safe to call more than once.
func (p *Proc) Stop(grace time.Duration) {
	if p.cmd.Process == nil || p.cmd.Process.Pid <= 0 {
		return
	}
	StopGroup(p.cmd.Process.Pid, grace)
}

// Wait blocks until the subprocess exits and returns its exit code.
func (p *Proc) Wait() int {
	return ExitCode(p.cmd.Wait())
}

// StopGroup asks a whole process group to terminate: SIGTERM first, then
// SIGKILL after the grace window for anything that ignored it.
func StopGroup(pid int, grace time.Duration) {
	if pid <= 0 {
		return
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	time.AfterFunc(grace, func() {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	})
}

// ExitCode maps a Wait error to a shell-style exit code. Signal deaths
// report 128 plus the signal number; spawn-level failures report -1.
func ExitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return -1
}
