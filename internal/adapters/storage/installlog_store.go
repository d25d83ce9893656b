package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
)

// JSONLInstallLogStore persists registration records as append-only JSON
// lines, one record per line. Existing lines are never rewritten.
type JSONLInstallLogStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLInstallLogStore creates the store, ensuring the parent
// directory exists.
func NewJSONLInstallLogStore(path string) (*JSONLInstallLogStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create install log directory: %w", err)
	}
	return &JSONLInstallLogStore{path: path}, nil
}

// Append writes one record and fsyncs before returning.
func (s *JSONLInstallLogStore) Append(record domain.InstallLogRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// Recent returns up to limit records, oldest first within the returned
// slice. Corrupt lines are skipped rather than failing the whole read.
func (s *JSONLInstallLogStore) Recent(limit int) ([]domain.InstallLogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.InstallLogRecord{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []domain.InstallLogRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec domain.InstallLogRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// Ensure interface compliance
var _ ports.InstallLogStore = (*JSONLInstallLogStore)(nil)
