package domain

import "time"

// CommandSpec describes one external tool invocation.
type CommandSpec struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// CommandResult is the captured outcome of a tool invocation. A non-zero
// exit is an outcome, not an error; TimedOut marks a wall-clock kill.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// CompileResult reports one compile invocation.
type CompileResult struct {
	OK         bool     `json:"ok"`
	Sketch     string   `json:"sketch"`
	FQBN       string   `json:"fqbn"`
	BuildPath  string   `json:"buildPath,omitempty"`
	Binaries   []string `json:"binaries,omitempty"`
	DurationMs int64    `json:"durationMs"`
	Output     string   `json:"output,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// UploadResult reports one upload invocation.
type UploadResult struct {
	OK         bool   `json:"ok"`
	Port       string `json:"port"`
	DurationMs int64  `json:"durationMs"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FlashAllResult aggregates a compile-once, upload-sequentially run.
type FlashAllResult struct {
	Compile CompileResult  `json:"compile"`
	Uploads []UploadResult `json:"uploads"`
	Total   int            `json:"total"`
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
}

// ResetMethod selects the device reset strategy.
type ResetMethod string

const (
	// ResetPulse toggles DTR/RTS over the opened serial port.
	ResetPulse ResetMethod = "pulse"
	// ResetTool invokes the vendor flash tool in hard-reset mode.
	ResetTool ResetMethod = "esptool"
)

// BufferStats summarises one port ring buffer.
type BufferStats struct {
	Port          string `json:"port"`
	Lines         int    `json:"lines"`
	Bytes         int64  `json:"bytes"`
	FirstSeq      int64  `json:"firstSeq"`
	LastSeq       int64  `json:"lastSeq"`
	DroppedOldest int64  `json:"droppedOldest"`
}
