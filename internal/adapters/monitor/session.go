package monitor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/runner"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/adapters/serialport"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/telemetry"
)

// execCommandContext allows mocking exec.CommandContext in tests.
var execCommandContext = exec.CommandContext

const (
	// stopGrace is the window between SIGTERM and SIGKILL on stop.
	stopGrace = 1 * time.Second
	// rawChunkSize bounds raw-mode chunks before base64 encoding.
	rawChunkSize = 256
)

// Deps are the sinks and controls a session publishes through. The
// session holds only these non-owning handles; the Manager owns the
// session itself.
type Deps struct {
	Sink      ports.EventSink
	Buffer    ports.BufferAppender
	Health    ports.HealthObserver
	Installs  ports.InstallScanner
	Nicknames ports.NicknameSource
	Control   ports.PortControl
	CLIPath   string
}

// Session owns one serial streaming subprocess for one port. It is
// created by the Manager; its state advances pending -> running ->
// stopping -> terminated exactly once.
type Session struct {
	token  string
	opts   domain.MonitorOptions
	deps   Deps
	stopRe *regexp.Regexp

	mu             sync.Mutex
	state          domain.SessionState
	baud           int
	startedAt      time.Time
	lineCount      int64
	lastLine       string
	detectReboot   bool
	rebootDetected bool
	stopReason     domain.StopReason
	summary        domain.SessionSummary
	cmd            *exec.Cmd
	maxTimer       *time.Timer

	done chan struct{}
}

// newSession builds a pending session. The stop pattern is compiled up
// front so an invalid pattern never creates a session.
func newSession(token string, opts domain.MonitorOptions, deps Deps) (*Session, error) {
	s := &Session{
		token:        token,
		opts:         opts,
		deps:         deps,
		state:        domain.SessionPending,
		baud:         opts.Baud,
		detectReboot: opts.DetectRebootEnabled(),
		done:         make(chan struct{}),
	}
	if opts.StopOn != "" {
		re, err := domain.CompilePattern(opts.StopOn)
		if err != nil {
			return nil, err
		}
		s.stopRe = re
	}
	return s, nil
}

// Token returns the session's opaque identifier.
func (s *Session) Token() string { return s.token }

// Port returns the owned serial endpoint.
func (s *Session) Port() string { return s.opts.Port }

// Baud returns the currently-effective line rate.
func (s *Session) Baud() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud
}

// Done is closed when the session reaches terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start probes, pulses and spawns. It is idempotent: a second call on a
// running session is a no-op. Spawn failures short-circuit the session
// to terminated.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case domain.SessionRunning, domain.SessionStopping:
		s.mu.Unlock()
		return nil
	case domain.SessionTerminated:
		s.mu.Unlock()
		return fmt.Errorf("%w: session already terminated", domain.ErrSessionNotFound)
	}
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.opts.AutoBaud {
		s.probeBaud(ctx)
	}

	// Boot-reset pulse. Failures are non-fatal; some adapters wire no
	// control lines at all.
	if err := s.deps.Control.Pulse(s.opts.Port); err != nil {
		slog.Debug("reset pulse failed", "port", s.opts.Port, "error", err)
	}

	cmd := execCommandContext(ctx, s.deps.CLIPath,
		"monitor", "-p", s.opts.Port, "-c", fmt.Sprintf("baudrate=%d", s.Baud()), "--quiet")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.failSpawn()
		return fmt.Errorf("%w: %v", domain.ErrSpawnFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.failSpawn()
		return fmt.Errorf("%w: %v", domain.ErrSpawnFailed, err)
	}
	if err := cmd.Start(); err != nil {
		s.failSpawn()
		return fmt.Errorf("%w: %s: %v", domain.ErrSpawnFailed, s.deps.CLIPath, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.state = domain.SessionRunning
	if s.opts.MaxSeconds > 0 {
		s.maxTimer = time.AfterFunc(time.Duration(s.opts.MaxSeconds)*time.Second, func() {
			s.requestStop(domain.StopTimeLimit)
		})
	}
	s.mu.Unlock()

	telemetry.SessionsStarted.Inc()
	telemetry.SessionsActive.Inc()
	slog.Info("monitor session started", "token", s.token, "port", s.opts.Port, "baud", s.Baud(), "raw", s.opts.Raw)

	go s.readLoop(stdout, stderr)
	return nil
}

// probeBaud runs the auto-baud scan and records the winning rate.
// Diagnostic lines about the outcome are emitted into the stream so
// clients see why the rate changed.
func (s *Session) probeBaud(ctx context.Context) {
	requested := s.Baud()
	res := serialport.ProbeBaud(ctx, s.deps.Control, s.opts.Port, requested)

	s.mu.Lock()
	s.baud = res.Baud
	s.mu.Unlock()

	if res.FellBack {
		s.emitLine(fmt.Sprintf("[auto-baud] no candidate scored above minimum (best %.2f), falling back to %d", res.Score, res.Baud), "system", false)
		return
	}
	s.emitLine(fmt.Sprintf("[auto-baud] selected %d (score %.2f)", res.Baud, res.Score), "system", false)
}

func (s *Session) failSpawn() {
	s.mu.Lock()
	s.stopReason = domain.StopError
	s.mu.Unlock()
	s.finalize(-1)
}

type rawLine struct {
	text   string
	stream string
	raw    bool
}

// readLoop pumps both pipes into a single channel so downstream
// consumers observe one ordered stream, then reaps the subprocess.
func (s *Session) readLoop(stdout, stderr io.Reader) {
	lines := make(chan rawLine, 64)
	var wg sync.WaitGroup
	wg.Add(2)

	if s.opts.Raw {
		go s.pumpChunks(stdout, lines, &wg)
	} else {
		go s.pumpLines(stdout, "stdout", lines, &wg)
	}
	go s.pumpLines(stderr, "stderr", lines, &wg)
	go func() {
		wg.Wait()
		close(lines)
	}()

	for rl := range lines {
		s.handleLine(rl)
	}

	exitCode := 0
	if err := s.cmd.Wait(); err != nil {
		exitCode = runner.ExitCode(err)
	}
	s.finalize(exitCode)
}

// pumpLines frames a pipe on CR or LF so partial lines rewritten with a
// bare carriage return still come through.
func (s *Session) pumpLines(r io.Reader, stream string, out chan<- rawLine, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanCRLF)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		out <- rawLine{text: text, stream: stream}
	}
}

// pumpChunks emits bounded base64 chunks for raw mode.
func (s *Session) pumpChunks(r io.Reader, out chan<- rawLine, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, rawChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out <- rawLine{text: base64.StdEncoding.EncodeToString(buf[:n]), stream: "stdout", raw: true}
		}
		if err != nil {
			return
		}
	}
}

// scanCRLF splits on either line terminator (device firmware mixes
// both).
func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[0:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// handleLine is the single ordered emission path: ring buffer (which
// drives captures), health, install-log scan, then broadcast. A session
// past running publishes nothing further.
func (s *Session) handleLine(rl rawLine) {
	s.mu.Lock()
	if s.state != domain.SessionRunning {
		s.mu.Unlock()
		return
	}
	text := rl.text
	if !rl.raw {
		text = StripANSI(text)
	}
	s.lineCount++
	lineNumber := s.lineCount
	s.lastLine = text
	baud := s.baud
	s.mu.Unlock()

	nickname := s.deps.Nicknames.Nickname(s.opts.Port)
	ev := domain.NewLineEvent(s.opts.Port, nickname, text, lineNumber, baud, rl.stream, rl.raw)

	s.deps.Buffer.Append(s.opts.Port, ev)
	s.deps.Health.ObserveLine(ev)

	if s.detectReboot && !rl.raw {
		if kind, ok := DetectSignal(text); ok {
			s.mu.Lock()
			s.rebootDetected = true
			s.mu.Unlock()
			s.deps.Health.ObserveSignal(s.opts.Port, text, kind == SignalReboot)
			telemetry.CrashSignals.WithLabelValues(s.opts.Port, string(kind)).Inc()
		}
	}
	if !rl.raw {
		s.deps.Installs.ScanLine(s.opts.Port, nickname, text)
	}

	s.deps.Sink.Publish(ev)
	telemetry.SerialLines.WithLabelValues(s.opts.Port).Inc()

	// Stop conditions, tested in order after emission.
	if s.stopRe != nil && !rl.raw && s.stopRe.MatchString(text) {
		s.requestStop(domain.StopPatternMatch)
		return
	}
	if s.opts.MaxLines > 0 && lineNumber >= int64(s.opts.MaxLines) {
		s.requestStop(domain.StopLineLimit)
	}
}

// emitLine publishes a diagnostic line outside the subprocess stream
// (probe announcements). It follows the same ordered path.
func (s *Session) emitLine(text, stream string, raw bool) {
	s.mu.Lock()
	if s.state == domain.SessionTerminated {
		s.mu.Unlock()
		return
	}
	s.lineCount++
	lineNumber := s.lineCount
	s.lastLine = text
	baud := s.baud
	s.mu.Unlock()

	nickname := s.deps.Nicknames.Nickname(s.opts.Port)
	ev := domain.NewLineEvent(s.opts.Port, nickname, text, lineNumber, baud, stream, raw)
	s.deps.Buffer.Append(s.opts.Port, ev)
	s.deps.Sink.Publish(ev)
}

// Stop requests cooperative termination. Idempotent; the summary is
// observed via Wait.
func (s *Session) Stop() {
	s.requestStop(domain.StopManual)
}

// requestStop records the first stop reason, transitions to stopping and
// signals the child. Later callers are no-ops.
func (s *Session) requestStop(reason domain.StopReason) {
	s.mu.Lock()
	if s.state != domain.SessionRunning {
		s.mu.Unlock()
		return
	}
	s.state = domain.SessionStopping
	s.stopReason = reason
	cmd := s.cmd
	s.mu.Unlock()

	slog.Info("monitor session stopping", "token", s.token, "port", s.opts.Port, "reason", reason)
	if cmd != nil && cmd.Process != nil {
		runner.StopGroup(cmd.Process.Pid, stopGrace)
	}
}

// finalize runs exactly once when the subprocess is gone: fix the
// summary, publish serial_end, release waiters.
func (s *Session) finalize(exitCode int) {
	s.mu.Lock()
	if s.state == domain.SessionTerminated {
		s.mu.Unlock()
		return
	}
	if s.maxTimer != nil {
		s.maxTimer.Stop()
	}
	reason := s.stopReason
	if reason == "" {
		if exitCode == 0 {
			reason = domain.StopCompleted
		} else {
			reason = domain.StopError
		}
	}
	wasRunning := s.state == domain.SessionRunning || s.state == domain.SessionStopping
	s.state = domain.SessionTerminated
	s.stopReason = reason
	elapsed := time.Since(s.startedAt).Seconds()
	s.summary = domain.SessionSummary{
		Token:          s.token,
		Port:           s.opts.Port,
		Baud:           s.baud,
		Reason:         reason,
		ElapsedSeconds: elapsed,
		Lines:          s.lineCount,
		LastLine:       s.lastLine,
		RebootDetected: s.rebootDetected,
		ExitCode:       exitCode,
	}
	summary := s.summary
	s.mu.Unlock()

	end := domain.NewEndEvent(summary.Port, summary.Reason, summary.ElapsedSeconds, summary.LastLine, summary.RebootDetected, summary.ExitCode)
	s.deps.Buffer.Append(summary.Port, end)
	s.deps.Sink.Publish(end)

	if wasRunning {
		telemetry.SessionsActive.Dec()
	}
	slog.Info("monitor session terminated", "token", s.token, "port", summary.Port, "reason", summary.Reason, "lines", summary.Lines, "exitCode", summary.ExitCode)
	close(s.done)
}

// Wait blocks until the session terminates and returns its summary.
// Repeated calls observe the same summary.
func (s *Session) Wait(ctx context.Context) (domain.SessionSummary, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return domain.SessionSummary{}, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary, nil
}

// Snapshot is a point-in-time copy for listings.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionSnapshot{
		Token:          s.token,
		Port:           s.opts.Port,
		Nickname:       s.deps.Nicknames.Nickname(s.opts.Port),
		Baud:           s.baud,
		Raw:            s.opts.Raw,
		State:          s.state,
		StartedAt:      s.startedAt,
		Lines:          s.lineCount,
		LastLine:       s.lastLine,
		RebootDetected: s.rebootDetected,
	}
}
