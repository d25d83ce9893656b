package ports

import (
	"context"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// AuditRepository persists orchestrator operation records.
type AuditRepository interface {
	SaveAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// InstallLogStore is the append-only persistence behind the ingester.
// Append is serialised by the caller (single-writer discipline).
type InstallLogStore interface {
	Append(record domain.InstallLogRecord) error
	Recent(limit int) ([]domain.InstallLogRecord, error)
}
