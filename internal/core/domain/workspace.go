package domain

import "encoding/json"

// WorkspaceConfig is the single authoritative copy of the on-disk
// workspace file. Unknown keys read from disk are kept in Extra and
// written back verbatim so newer tools can share the file.
type WorkspaceConfig struct {
	BuildOutputDir      string            `json:"buildOutputDir"`
	SketchesDir         string            `json:"sketchesDir"`
	DataDir             string            `json:"dataDir"`
	DefaultFQBN         string            `json:"defaultFqbn"`
	DefaultBaud         int               `json:"defaultBaud"`
	AdditionalBuildDirs []string          `json:"additionalBuildDirs,omitempty"`
	PortNicknames       map[string]string `json:"portNicknames,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var workspaceKnownKeys = map[string]bool{
	"buildOutputDir":      true,
	"sketchesDir":         true,
	"dataDir":             true,
	"defaultFqbn":         true,
	"defaultBaud":         true,
	"additionalBuildDirs": true,
	"portNicknames":       true,
}

// workspaceConfigAlias avoids marshal recursion.
type workspaceConfigAlias WorkspaceConfig

func (c *WorkspaceConfig) UnmarshalJSON(data []byte) error {
	var alias workspaceConfigAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if workspaceKnownKeys[key] {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}

	*c = WorkspaceConfig(alias)
	return nil
}

func (c WorkspaceConfig) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(workspaceConfigAlias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+8)
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for key, value := range c.Extra {
		if !workspaceKnownKeys[key] {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy so callers can hand out config snapshots
// without exposing internal maps.
func (c WorkspaceConfig) Clone() WorkspaceConfig {
	out := c
	if c.AdditionalBuildDirs != nil {
		out.AdditionalBuildDirs = append([]string(nil), c.AdditionalBuildDirs...)
	}
	if c.PortNicknames != nil {
		out.PortNicknames = make(map[string]string, len(c.PortNicknames))
		for k, v := range c.PortNicknames {
			out.PortNicknames[k] = v
		}
	}
	if c.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}
