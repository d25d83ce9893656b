package buffer

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/telemetry"
)

// DefaultCaptureTimeout applies when a capture spec names none.
const DefaultCaptureTimeout = 30 * time.Second

// Capture is one deadline-bounded wait for a pattern over a port's live
// stream. It resolves exactly once; the result is delivered on Done.
type Capture struct {
	id        string
	port      string
	pattern   string
	re        *regexp.Regexp
	maxLines  int
	startedAt time.Time
	deadline  time.Time
	timer     *time.Timer

	// Guarded by the owning Manager's mutex.
	lines    []string
	resolved bool

	done chan domain.CaptureResult
}

// ID returns the capture's identifier.
func (c *Capture) ID() string { return c.id }

// Done delivers the result exactly once.
func (c *Capture) Done() <-chan domain.CaptureResult { return c.done }

// observe tests one appended line. Returns true when the capture
// resolved and must leave the active set. Caller holds the manager lock.
func (c *Capture) observe(line string) bool {
	if c.resolved {
		return true
	}
	if c.maxLines <= 0 || len(c.lines) < c.maxLines {
		c.lines = append(c.lines, line)
	}
	if c.re.MatchString(line) {
		c.resolve(domain.CaptureMatched, line)
		return true
	}
	if c.maxLines > 0 && len(c.lines) >= c.maxLines {
		c.resolve(domain.CaptureLineCap, "")
		return true
	}
	return false
}

// resolve finalises the capture. Caller holds the manager lock.
func (c *Capture) resolve(status domain.CaptureStatus, matched string) {
	if c.resolved {
		return
	}
	c.resolved = true
	c.timer.Stop()
	telemetry.CapturesResolved.WithLabelValues(string(status)).Inc()
	c.done <- domain.CaptureResult{
		ID:        c.id,
		Port:      c.port,
		Pattern:   c.pattern,
		Status:    status,
		Matched:   matched,
		Lines:     c.lines,
		ElapsedMs: time.Since(c.startedAt).Milliseconds(),
	}
	close(c.done)
}

// StartCapture registers a pattern wait against the port's live stream.
// The pattern is compiled up front; invalid patterns never create a
// capture.
func (m *Manager) StartCapture(spec domain.CaptureSpec) (*Capture, error) {
	if !domain.IsValidPortAddress(spec.Port) {
		return nil, fmt.Errorf("%w: port %q", domain.ErrInvalidInput, spec.Port)
	}
	re, err := domain.CompilePattern(spec.Pattern)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(spec.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}

	c := &Capture{
		id:        uuid.New().String(),
		port:      spec.Port,
		pattern:   spec.Pattern,
		re:        re,
		maxLines:  spec.MaxLines,
		startedAt: time.Now(),
		deadline:  time.Now().Add(timeout),
		done:      make(chan domain.CaptureResult, 1),
	}

	m.mu.Lock()
	m.captures[c.id] = c
	c.timer = time.AfterFunc(timeout, func() { m.expireCapture(c.id) })
	m.mu.Unlock()
	return c, nil
}

func (m *Manager) expireCapture(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok {
		return
	}
	c.resolve(domain.CaptureTimeout, "")
	delete(m.captures, id)
}

// CancelCapture resolves an active capture as cancelled. Returns false
// when the id is unknown or already resolved.
func (m *Manager) CancelCapture(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok {
		return false
	}
	c.resolve(domain.CaptureCancelled, "")
	delete(m.captures, id)
	return true
}

// ActiveCaptures lists still-active captures, optionally filtered by
// port. Empty port means all.
func (m *Manager) ActiveCaptures(port string) []domain.CaptureDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.CaptureDescriptor{}
	for _, c := range m.captures {
		if port != "" && c.port != port {
			continue
		}
		out = append(out, domain.CaptureDescriptor{
			ID:        c.id,
			Port:      c.port,
			Pattern:   c.pattern,
			StartedAt: c.startedAt,
			Deadline:  c.deadline,
			Collected: len(c.lines),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
