package models

// CommandRequest carries one command, either as a raw line or pre-split tokens.
// Tokens win when both are set.
type CommandRequest struct {
	Line   string   `json:"line,omitempty" yaml:"line,omitempty"`
	Tokens []string `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// CommandResponse reports the outcome of a command
type CommandResponse struct {
	Command string   `json:"command" yaml:"command"`
	OK      bool     `json:"ok" yaml:"ok"`
	Lines   []string `json:"lines,omitempty" yaml:"lines,omitempty"`
	Error   string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// LogBatch wraps multiple lines produced by one module
type LogBatch struct {
	Module string   `json:"module" yaml:"module"`
	Lines  []string `json:"lines" yaml:"lines"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status   string          `json:"status" yaml:"status"`
	Commands []string        `json:"commands" yaml:"commands"`
	Buffer   BufferStats `json:"buffer" yaml:"buffer"`
}

// BufferStats is a point-in-time view of a log buffer's counters
type BufferStats struct {
	Admitted  uint64 `json:"admitted" yaml:"admitted"`
	Dropped   uint64 `json:"dropped" yaml:"dropped"`
	Bypassed  uint64 `json:"bypassed" yaml:"bypassed"`
	Stored    int    `json:"stored" yaml:"stored"`
	Remaining int    `json:"remaining" yaml:"remaining"`
}

// Result carries the outcome of an executed command
type Result struct {
	Command string   `json:"command" yaml:"command"`
	Lines   []string `json:"lines,omitempty" yaml:"lines,omitempty"`
}
