package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
)

// Service records orchestrator operations. Recording is best-effort: a
// failed write is logged, never propagated into the operation's own
// result.
type Service struct {
	repo ports.AuditRepository
}

// NewService creates a Service.
func NewService(repo ports.AuditRepository) *Service {
	return &Service{repo: repo}
}

// Record persists one operation outcome.
func (s *Service) Record(ctx context.Context, action domain.AuditAction, target, details string, ok bool, duration time.Duration) {
	entry, err := domain.NewAuditLog(action, target, details, ok, duration)
	if err != nil {
		slog.Error("invalid audit entry", "action", action, "error", err)
		return
	}
	if err := s.repo.SaveAuditLog(ctx, *entry); err != nil {
		slog.Error("audit write failed", "action", action, "target", target, "error", err)
	}
}

// Logs returns recent entries, newest first.
func (s *Service) Logs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, limit)
}
