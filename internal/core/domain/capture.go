package domain

import "time"

// CaptureStatus is the lifecycle of a pattern capture. A capture leaves
// "active" exactly once.
type CaptureStatus string

const (
	CaptureActive    CaptureStatus = "active"
	CaptureMatched   CaptureStatus = "matched"
	CaptureTimeout   CaptureStatus = "timeout"
	CaptureCancelled CaptureStatus = "cancelled"
	CaptureLineCap   CaptureStatus = "line-cap"
)

// CaptureSpec is the request shape for starting a capture.
type CaptureSpec struct {
	Port      string `json:"port"`
	Pattern   string `json:"pattern"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
	MaxLines  int    `json:"max_lines,omitempty"`
}

// CaptureResult is the resolved outcome. Matched holds the line that
// satisfied the pattern; Lines holds whatever was accumulated before
// resolution (bounded by the spec's max_lines).
type CaptureResult struct {
	ID        string        `json:"captureId"`
	Port      string        `json:"port"`
	Pattern   string        `json:"pattern"`
	Status    CaptureStatus `json:"status"`
	Matched   string        `json:"matched,omitempty"`
	Lines     []string      `json:"lines,omitempty"`
	ElapsedMs int64         `json:"elapsedMs"`
}

// CaptureDescriptor describes a still-active capture.
type CaptureDescriptor struct {
	ID        string    `json:"captureId"`
	Port      string    `json:"port"`
	Pattern   string    `json:"pattern"`
	StartedAt time.Time `json:"startedAt"`
	Deadline  time.Time `json:"deadline"`
	Collected int       `json:"collected"`
}
