package domain

import (
	"errors"
	"time"
)

// AuditAction represents a type-safe action identifier for the audit log.
type AuditAction string

// Fleet operation audit actions.
const (
	ActionMonitorStart AuditAction = "MONITOR_START"
	ActionMonitorStop  AuditAction = "MONITOR_STOP"
	ActionCompile      AuditAction = "COMPILE"
	ActionUpload       AuditAction = "UPLOAD"
	ActionFlashAll     AuditAction = "FLASH_ALL"
	ActionDeviceReset  AuditAction = "DEVICE_RESET"
	ActionConfigChange AuditAction = "CONFIG_CHANGE"
	ActionInfo         AuditAction = "INFO"
)

// ErrInvalidAction rejects audit entries with an unknown action tag.
var ErrInvalidAction = errors.New("invalid audit action")

// AuditLog records one orchestrator operation: what ran, against which
// port or sketch, whether it succeeded, and how long it took.
type AuditLog struct {
	ID         uint        `json:"id"`
	Action     AuditAction `json:"action"`
	Target     string      `json:"target"`
	Details    string      `json:"details"`
	OK         bool        `json:"ok"`
	DurationMs int64       `json:"durationMs"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewAuditLog is the designated factory for creating valid AuditLog entries.
func NewAuditLog(action AuditAction, target, details string, ok bool, duration time.Duration) (*AuditLog, error) {
	if !isValidAction(action) {
		return nil, ErrInvalidAction
	}

	return &AuditLog{
		Action:     action,
		Target:     target,
		Details:    details,
		OK:         ok,
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}, nil
}

func isValidAction(action AuditAction) bool {
	switch action {
	case ActionMonitorStart, ActionMonitorStop, ActionCompile, ActionUpload,
		ActionFlashAll, ActionDeviceReset, ActionConfigChange, ActionInfo:
		return true
	}
	return false
}
