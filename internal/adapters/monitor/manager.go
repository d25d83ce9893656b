package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
)

// Manager owns all live monitor sessions and enforces the one-session-
// per-port rule. Tokens are opaque UUIDs; ports are the stable handle
// other services key on.
type Manager struct {
	deps Deps

	mu      sync.Mutex
	byToken map[string]*Session
	byPort  map[string]*Session
}

// NewManager builds an empty session registry.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:    deps,
		byToken: make(map[string]*Session),
		byPort:  make(map[string]*Session),
	}
}

// Start validates, claims the port and launches a session. The port is
// claimed before the subprocess spawns so two concurrent starts cannot
// both win; a failed spawn releases the claim.
func (m *Manager) Start(ctx context.Context, opts domain.MonitorOptions) (*Session, error) {
	if !domain.IsValidPortAddress(opts.Port) {
		return nil, fmt.Errorf("%w: port %q", domain.ErrInvalidInput, opts.Port)
	}
	if opts.Baud <= 0 {
		opts.Baud = domain.DefaultBaud
	}

	s, err := newSession(uuid.New().String(), opts, m.deps)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.byPort[opts.Port]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s held by session %s", domain.ErrPortBusy, opts.Port, existing.Token())
	}
	m.byToken[s.Token()] = s
	m.byPort[opts.Port] = s
	m.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		m.remove(s)
		return nil, err
	}

	// Release the registry slot once the session winds down on its own
	// (time limit, pattern match, subprocess exit).
	go func() {
		<-s.Done()
		m.remove(s)
	}()
	return s, nil
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byToken[s.Token()] == s {
		delete(m.byToken, s.Token())
	}
	if m.byPort[s.Port()] == s {
		delete(m.byPort, s.Port())
	}
}

// Get looks a session up by token.
func (m *Manager) Get(token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byToken[token]
	if !ok {
		return nil, fmt.Errorf("%w: token %s", domain.ErrSessionNotFound, token)
	}
	return s, nil
}

// GetByPort looks a session up by its owned port.
func (m *Manager) GetByPort(port string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byPort[port]
	if !ok {
		return nil, fmt.Errorf("%w: no session on %s", domain.ErrSessionNotFound, port)
	}
	return s, nil
}

// Stop terminates the session holding the token and waits for its
// summary.
func (m *Manager) Stop(ctx context.Context, token string) (domain.SessionSummary, error) {
	s, err := m.Get(token)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	s.Stop()
	return s.Wait(ctx)
}

// StopByPort vacates a port ahead of a flash. Missing sessions are not
// an error; the port is simply already free.
func (m *Manager) StopByPort(ctx context.Context, port string) error {
	s, err := m.GetByPort(port)
	if err != nil {
		return nil
	}
	s.Stop()
	if _, err := s.Wait(ctx); err != nil {
		return err
	}
	return nil
}

// List returns snapshots of every live session, ordered by port.
func (m *Manager) List() []domain.SessionSnapshot {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.byToken))
	for _, s := range m.byToken {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]domain.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// StopAll terminates every live session, used on shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	for _, snap := range m.List() {
		if err := m.StopByPort(ctx, snap.Port); err != nil {
			slog.Warn("session did not stop cleanly", "port", snap.Port, "error", err)
		}
	}
}

var _ ports.MonitorRegistry = (*Manager)(nil)
