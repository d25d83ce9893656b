package health

import (
	"sort"
	"sync"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// crashRateWindow is the rolling window for the crashes-per-minute rate.
const crashRateWindow = 10 * time.Minute

// record is the mutable per-port state behind a HealthRecord.
type record struct {
	lines       int64
	stderrLines int64
	crashLines  int64
	rebootLines int64
	lastCrash   string
	lastReboot  string
	firstSeen   time.Time
	lastSeen    time.Time
	crashTimes  []time.Time
}

// Service passively aggregates per-port stream observations. Updates run
// inline on the publish path, so every method is a short critical
// section and nothing blocks.
type Service struct {
	mu    sync.Mutex
	ports map[string]*record
	now   func() time.Time
}

// New creates a Service.
func New() *Service {
	return &Service{ports: make(map[string]*record), now: time.Now}
}

func (s *Service) record(port string) *record {
	r := s.ports[port]
	if r == nil {
		r = &record{firstSeen: s.now()}
		s.ports[port] = r
	}
	return r
}

// ObserveLine counts one framed line.
func (s *Service) ObserveLine(event domain.SerialEvent) {
	if event.Type != domain.EventSerial || event.Port == "" {
		return
	}
	s.mu.Lock()
	r := s.record(event.Port)
	r.lines++
	if event.Stream == "stderr" {
		r.stderrLines++
	}
	r.lastSeen = s.now()
	s.mu.Unlock()
}

// ObserveSignal counts a crash or reboot signal line.
func (s *Service) ObserveSignal(port, line string, reboot bool) {
	s.mu.Lock()
	r := s.record(port)
	now := s.now()
	if reboot {
		r.rebootLines++
		r.lastReboot = line
	} else {
		r.crashLines++
		r.lastCrash = line
		r.crashTimes = append(r.crashTimes, now)
	}
	r.lastSeen = now
	s.mu.Unlock()
}

// Report returns one port's health record; ok is false for a port never
// observed.
func (s *Service) Report(port string) (domain.HealthRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ports[port]
	if !ok {
		return domain.HealthRecord{Port: port}, false
	}
	return s.snapshot(port, r), true
}

// Fleet returns the cross-port summary.
func (s *Service) Fleet() domain.FleetHealth {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.FleetHealth{GeneratedAt: s.now()}
	for port, r := range s.ports {
		rec := s.snapshot(port, r)
		out.Ports = append(out.Ports, rec)
		out.TotalLines += rec.Lines
		out.TotalCrashes += rec.CrashLines
		out.TotalReboots += rec.RebootLines
	}
	sort.Slice(out.Ports, func(i, j int) bool { return out.Ports[i].Port < out.Ports[j].Port })
	return out
}

// snapshot builds the exported record and prunes crash timestamps that
// fell out of the rate window. Caller holds the lock.
func (s *Service) snapshot(port string, r *record) domain.HealthRecord {
	cutoff := s.now().Add(-crashRateWindow)
	kept := r.crashTimes[:0]
	for _, ts := range r.crashTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.crashTimes = kept

	return domain.HealthRecord{
		Port:             port,
		Lines:            r.lines,
		StderrLines:      r.stderrLines,
		CrashLines:       r.crashLines,
		RebootLines:      r.rebootLines,
		LastCrash:        r.lastCrash,
		LastReboot:       r.lastReboot,
		FirstSeen:        r.firstSeen,
		LastSeen:         r.lastSeen,
		CrashesPerMinute: float64(len(kept)) / crashRateWindow.Minutes(),
	}
}
