package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// ConfigFileName is the workspace config file inside the workspace dir.
const ConfigFileName = "workspace.json"

// Manager holds the single authoritative in-memory copy of the workspace
// config. All writes go through an atomic save (write-temp, rename);
// external edits to the file are picked up by Watch.
type Manager struct {
	dir  string
	path string

	mu  sync.RWMutex
	cfg domain.WorkspaceConfig

	// lastSave suppresses the watcher reload triggered by our own
	// rename.
	lastSave time.Time
}

// NewManager loads the config from dir, creating the file with defaults
// when absent or unreadable.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create workspace directory: %w", err)
	}

	m := &Manager{dir: dir, path: filepath.Join(dir, ConfigFileName)}
	if err := m.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("workspace config unreadable, recreating with defaults", "path", m.path, "error", err)
		}
		m.cfg = m.defaults()
		if err := m.save(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) defaults() domain.WorkspaceConfig {
	return domain.WorkspaceConfig{
		BuildOutputDir: filepath.Join(m.dir, "builds"),
		SketchesDir:    filepath.Join(m.dir, "sketches"),
		DataDir:        filepath.Join(m.dir, "data"),
		DefaultFQBN:    "esp32:esp32:esp32",
		DefaultBaud:    domain.DefaultBaud,
	}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	var cfg domain.WorkspaceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// save writes the current config atomically. Caller must not hold mu.
func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(m.dir, ".workspace-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	m.lastSave = time.Now()
	return os.Rename(tmp.Name(), m.path)
}

// Config returns a deep copy of the current config.
func (m *Manager) Config() domain.WorkspaceConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Clone()
}

// Update applies fn to the config under the lock and persists the
// result.
func (m *Manager) Update(fn func(cfg *domain.WorkspaceConfig)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.cfg)
	return m.saveLocked()
}

// Nickname resolves the user label for a port, empty when unset.
func (m *Manager) Nickname(port string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.PortNicknames[port]
}

// Nicknames returns a copy of the full nickname map.
func (m *Manager) Nicknames() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.cfg.PortNicknames))
	for k, v := range m.cfg.PortNicknames {
		out[k] = v
	}
	return out
}

// SetNickname assigns a label to a port; an empty nickname clears the
// entry. The change is persisted before returning.
func (m *Manager) SetNickname(port, nickname string) error {
	if !domain.IsValidPortAddress(port) {
		return fmt.Errorf("%w: port %q", domain.ErrInvalidInput, port)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if nickname == "" {
		delete(m.cfg.PortNicknames, port)
	} else {
		if m.cfg.PortNicknames == nil {
			m.cfg.PortNicknames = make(map[string]string)
		}
		m.cfg.PortNicknames[port] = nickname
	}
	return m.saveLocked()
}

// DefaultFQBN returns the configured target identifier.
func (m *Manager) DefaultFQBN() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.DefaultFQBN
}

// DefaultBaud returns the configured line rate.
func (m *Manager) DefaultBaud() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg.DefaultBaud <= 0 {
		return domain.DefaultBaud
	}
	return m.cfg.DefaultBaud
}

// Watch reloads the config when the file changes on disk outside this
// process. Runs until the context is cancelled.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors and atomic writers replace the file,
	// which would drop a watch on the file itself.
	if err := watcher.Add(m.dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != m.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			m.mu.RLock()
			selfWrite := time.Since(m.lastSave) < 500*time.Millisecond
			m.mu.RUnlock()
			if selfWrite {
				continue
			}
			if err := m.load(); err != nil {
				slog.Warn("workspace config reload failed", "error", err)
				continue
			}
			slog.Info("workspace config reloaded from disk", "path", m.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("workspace config watcher error", "error", err)
		}
	}
}
