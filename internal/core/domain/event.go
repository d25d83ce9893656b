package domain

import "time"

// EventType discriminates the variants carried on the serial event bus.
type EventType string

const (
	EventSerial     EventType = "serial"
	EventSerialEnd  EventType = "serial_end"
	EventInstallLog EventType = "install_log"
	// EventPing is a keep-alive tick. It is delivered to subscribers but
	// never stored in the replay buffer or the ring buffers.
	EventPing EventType = "ping"
)

// SerialEvent is the single wire shape for everything the bus carries.
// Which fields are populated depends on Type; unused fields are omitted
// from the JSON encoding.
type SerialEvent struct {
	Type     EventType `json:"type"`
	Port     string    `json:"port,omitempty"`
	Nickname string    `json:"nickname,omitempty"`

	// Line payload. In raw mode Line holds a base64 chunk and Raw is true.
	Line       string    `json:"line,omitempty"`
	LineNumber int64     `json:"lineNumber,omitempty"`
	Seq        int64     `json:"seq,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Baud       int       `json:"baud,omitempty"`
	Raw        bool      `json:"raw,omitempty"`
	Stream     string    `json:"stream,omitempty"`

	// Session end payload.
	Reason         StopReason `json:"reason,omitempty"`
	ElapsedSeconds float64    `json:"elapsedSeconds,omitempty"`
	RebootDetected *bool      `json:"rebootDetected,omitempty"`
	LastLine       string     `json:"lastLine,omitempty"`
	ExitCode       *int       `json:"exitCode,omitempty"`

	// Install-log payload.
	Key   string           `json:"key,omitempty"`
	Entry *InstallLogEntry `json:"entry,omitempty"`
}

// NewLineEvent builds a framed output line event.
func NewLineEvent(port, nickname, line string, lineNumber int64, baud int, stream string, raw bool) SerialEvent {
	return SerialEvent{
		Type:       EventSerial,
		Port:       port,
		Nickname:   nickname,
		Line:       line,
		LineNumber: lineNumber,
		Timestamp:  time.Now(),
		Baud:       baud,
		Stream:     stream,
		Raw:        raw,
	}
}

// NewEndEvent builds the terminal summary event of a monitor session.
func NewEndEvent(port string, reason StopReason, elapsed float64, lastLine string, rebootDetected bool, exitCode int) SerialEvent {
	return SerialEvent{
		Type:           EventSerialEnd,
		Port:           port,
		Timestamp:      time.Now(),
		Reason:         reason,
		ElapsedSeconds: elapsed,
		RebootDetected: &rebootDetected,
		LastLine:       lastLine,
		ExitCode:       &exitCode,
	}
}

// NewInstallLogEvent announces a persisted registration record.
func NewInstallLogEvent(key string, entry InstallLogEntry) SerialEvent {
	return SerialEvent{
		Type:      EventInstallLog,
		Port:      entry.Port,
		Timestamp: time.Now(),
		Key:       key,
		Entry:     &entry,
	}
}

// NewPingEvent builds a keep-alive tick.
func NewPingEvent() SerialEvent {
	return SerialEvent{Type: EventPing, Timestamp: time.Now()}
}
