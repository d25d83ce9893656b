package storage

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
)

// SQLiteStore implements ports.AuditRepository using GORM and SQLite.
type SQLiteStore struct {
	db *gorm.DB
}

// AuditModel is the GORM model behind domain.AuditLog.
type AuditModel struct {
	ID         uint   `gorm:"primaryKey"`
	Action     string `gorm:"index"`
	Target     string `gorm:"index"`
	Details    string
	OK         bool
	DurationMs int64
	Timestamp  time.Time `gorm:"index"`
}

// NewSQLiteStore opens (or creates) the database and migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&AuditModel{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// SaveAuditLog persists one operation record.
func (s *SQLiteStore) SaveAuditLog(ctx context.Context, entry domain.AuditLog) error {
	model := AuditModel{
		Action:     string(entry.Action),
		Target:     entry.Target,
		Details:    entry.Details,
		OK:         entry.OK,
		DurationMs: entry.DurationMs,
		Timestamp:  entry.Timestamp,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListAuditLogs returns the newest records first.
func (s *SQLiteStore) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []AuditModel
	if err := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	logs := make([]domain.AuditLog, len(models))
	for i, m := range models {
		logs[i] = domain.AuditLog{
			ID:         m.ID,
			Action:     domain.AuditAction(m.Action),
			Target:     m.Target,
			Details:    m.Details,
			OK:         m.OK,
			DurationMs: m.DurationMs,
			Timestamp:  m.Timestamp,
		}
	}
	return logs, nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface compliance
var _ ports.AuditRepository = (*SQLiteStore)(nil)
