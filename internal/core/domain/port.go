package domain

// PortRecord is the normalised view of one serial endpoint as reported by
// the board-list tool. Records are rebuilt on every enumeration; only the
// nickname survives requests, in the workspace config.
type PortRecord struct {
	Address     string `json:"address"`
	Protocol    string `json:"protocol,omitempty"`
	Label       string `json:"label,omitempty"`
	VendorID    string `json:"vendorId,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	BoardName   string `json:"boardName,omitempty"`
	FQBN        string `json:"fqbn,omitempty"`
	TargetClass bool   `json:"targetClass"`
	Reachable   bool   `json:"reachable"`
	Nickname    string `json:"nickname,omitempty"`
}

// PortScanDiagnostics carries the raw tool output when enumeration could
// not be parsed. Empty on a clean scan.
type PortScanDiagnostics struct {
	RawStdout string `json:"rawStdout,omitempty"`
	RawStderr string `json:"rawStderr,omitempty"`
	ParseErr  string `json:"parseError,omitempty"`
}
