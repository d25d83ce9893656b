package buffer

import (
	"regexp"
	"sync"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// DefaultRingSize is the per-port retained line count.
const DefaultRingSize = 1000

// ring is one port's bounded line history. Sequence numbers start at 1
// and are dense; eviction advances firstSeq and counts drops.
type ring struct {
	events  []domain.SerialEvent
	nextSeq int64
	dropped int64
	bytes   int64
}

// Manager owns the per-port rings and the active capture index. Appends
// drive both: the line lands in the ring, then every active capture for
// that port is tested against it.
type Manager struct {
	mu       sync.Mutex
	rings    map[string]*ring
	size     int
	captures map[string]*Capture
}

// NewManager creates a Manager; size <= 0 selects the default.
func NewManager(size int) *Manager {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Manager{
		rings:    make(map[string]*ring),
		size:     size,
		captures: make(map[string]*Capture),
	}
}

// Append records one event for the port, stamping it with the next
// sequence number, and feeds active captures.
func (m *Manager) Append(port string, event domain.SerialEvent) {
	m.mu.Lock()
	r := m.rings[port]
	if r == nil {
		r = &ring{nextSeq: 1}
		m.rings[port] = r
	}
	event.Seq = r.nextSeq
	r.nextSeq++
	r.bytes += int64(len(event.Line))
	r.events = append(r.events, event)
	if len(r.events) > m.size {
		r.bytes -= int64(len(r.events[0].Line))
		r.events = r.events[1:]
		r.dropped++
	}

	var resolved []*Capture
	for _, c := range m.captures {
		if c.port != port {
			continue
		}
		if done := c.observe(event.Line); done {
			resolved = append(resolved, c)
		}
	}
	for _, c := range resolved {
		delete(m.captures, c.id)
	}
	m.mu.Unlock()
}

// Recent returns the last count events for the port, oldest first.
func (m *Manager) Recent(port string, count int) []domain.SerialEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rings[port]
	if r == nil {
		return []domain.SerialEvent{}
	}
	if count <= 0 || count > len(r.events) {
		count = len(r.events)
	}
	out := make([]domain.SerialEvent, count)
	copy(out, r.events[len(r.events)-count:])
	return out
}

// Since returns every retained event with sequence >= seq, oldest first.
// seq <= 1 means "from the beginning". truncated is set when seq names a
// sequence older than the oldest retained entry, i.e. the caller missed
// evicted lines. nextSeq is the cursor for the follow-up call.
func (m *Manager) Since(port string, seq int64) (events []domain.SerialEvent, truncated bool, nextSeq int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rings[port]
	if r == nil {
		return []domain.SerialEvent{}, false, 1
	}
	nextSeq = r.nextSeq
	if seq < 1 {
		seq = 1
	}
	if len(r.events) == 0 {
		return []domain.SerialEvent{}, seq < nextSeq, nextSeq
	}
	firstSeq := r.events[0].Seq
	if seq < firstSeq {
		out := make([]domain.SerialEvent, len(r.events))
		copy(out, r.events)
		return out, true, nextSeq
	}
	idx := int(seq - firstSeq)
	if idx > len(r.events) {
		idx = len(r.events)
	}
	out := make([]domain.SerialEvent, len(r.events)-idx)
	copy(out, r.events[idx:])
	return out, false, nextSeq
}

// Search returns up to limit retained events whose line matches re,
// oldest first.
func (m *Manager) Search(port string, re *regexp.Regexp, limit int) []domain.SerialEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rings[port]
	if r == nil {
		return []domain.SerialEvent{}
	}
	out := []domain.SerialEvent{}
	for _, ev := range r.events {
		if re.MatchString(ev.Line) {
			out = append(out, ev)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Stats summarises one port's ring.
func (m *Manager) Stats(port string) domain.BufferStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked(port)
}

// AllStats summarises every known port.
func (m *Manager) AllStats() []domain.BufferStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.BufferStats, 0, len(m.rings))
	for port := range m.rings {
		out = append(out, m.statsLocked(port))
	}
	return out
}

func (m *Manager) statsLocked(port string) domain.BufferStats {
	stats := domain.BufferStats{Port: port}
	r := m.rings[port]
	if r == nil {
		return stats
	}
	stats.Lines = len(r.events)
	stats.Bytes = r.bytes
	stats.DroppedOldest = r.dropped
	if len(r.events) > 0 {
		stats.FirstSeq = r.events[0].Seq
		stats.LastSeq = r.events[len(r.events)-1].Seq
	}
	return stats
}

// Clear drops one port's history. Sequence numbering continues; numbers
// are never reused.
func (m *Manager) Clear(port string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.rings[port]; r != nil {
		r.events = nil
		r.bytes = 0
	}
}

// ClearAll drops every port's history.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rings {
		r.events = nil
		r.bytes = 0
	}
}
