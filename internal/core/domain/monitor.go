package domain

import "time"

// SessionState tracks the monitor lifecycle. Transitions are one-way:
// pending -> running -> stopping -> terminated. A spawn or probe failure
// short-circuits straight to terminated.
type SessionState string

const (
	SessionPending    SessionState = "pending"
	SessionRunning    SessionState = "running"
	SessionStopping   SessionState = "stopping"
	SessionTerminated SessionState = "terminated"
)

// StopReason explains why a session terminated.
type StopReason string

const (
	StopManual       StopReason = "manual"
	StopTimeLimit    StopReason = "time_limit"
	StopPatternMatch StopReason = "pattern_match"
	StopLineLimit    StopReason = "line_limit"
	StopError        StopReason = "error"
	StopCompleted    StopReason = "completed"
)

// MonitorOptions is the request shape for starting a session. Field names
// follow the HTTP API body. DetectReboot is a pointer so an absent field
// keeps crash and reboot detection enabled; only an explicit false turns
// it off.
type MonitorOptions struct {
	Port         string `json:"port"`
	Baud         int    `json:"baud,omitempty"`
	AutoBaud     bool   `json:"auto_baud,omitempty"`
	Raw          bool   `json:"raw,omitempty"`
	MaxSeconds   int    `json:"max_seconds,omitempty"`
	MaxLines     int    `json:"max_lines,omitempty"`
	StopOn       string `json:"stop_on,omitempty"`
	DetectReboot *bool  `json:"detect_reboot,omitempty"`
}

// DetectRebootEnabled resolves the tri-state flag to its effective value.
func (o MonitorOptions) DetectRebootEnabled() bool {
	return o.DetectReboot == nil || *o.DetectReboot
}

// DefaultBaud is used when a start request names no rate and the workspace
// config carries none.
const DefaultBaud = 115200

// SessionSummary is the terminal result of a session. Repeated stop calls
// observe the same summary.
type SessionSummary struct {
	Token          string     `json:"token"`
	Port           string     `json:"port"`
	Baud           int        `json:"baud"`
	Reason         StopReason `json:"reason"`
	ElapsedSeconds float64    `json:"elapsedSeconds"`
	Lines          int64      `json:"lines"`
	LastLine       string     `json:"lastLine"`
	RebootDetected bool       `json:"rebootDetected"`
	ExitCode       int        `json:"exitCode"`
}

// SessionSnapshot is a point-in-time copy of a live session for listings.
type SessionSnapshot struct {
	Token          string       `json:"token"`
	Port           string       `json:"port"`
	Nickname       string       `json:"nickname,omitempty"`
	Baud           int          `json:"baud"`
	Raw            bool         `json:"raw,omitempty"`
	State          SessionState `json:"state"`
	StartedAt      time.Time    `json:"startedAt"`
	Lines          int64        `json:"lines"`
	LastLine       string       `json:"lastLine,omitempty"`
	RebootDetected bool         `json:"rebootDetected"`
}
