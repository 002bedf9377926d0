package domain

import "time"

type ProcessingState string

const (
	StatePending     ProcessingState = "pending"
	StateMemoryGated ProcessingState = "memory_gated"
	StateParsing     ProcessingState = "parsing"
	StateSummarizing ProcessingState = "summarizing"
	StateExtracting  ProcessingState = "extracting"
	StatePersisting  ProcessingState = "persisting"
	StateSucceeded   ProcessingState = "succeeded"
	StateFailed      ProcessingState = "failed"
)

// Terminal reports whether no further attempt follows this state.
func (s ProcessingState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ProcessingOutcome is the terminal result of one ProcessDocument call.
type ProcessingOutcome struct {
	Path      string          `json:"path"`
	Summary   string          `json:"summary"`
	Keywords  []string        `json:"keywords"`
	Succeeded bool            `json:"succeeded"`
	State     ProcessingState `json:"state"`

	// Attempts counts consumed attempts, memory-gated waits included.
	Attempts      int           `json:"attempts"`
	GateDeferrals int           `json:"gate_deferrals"`
	Elapsed       time.Duration `json:"elapsed"`
	// MemoryDelta is the change in used system memory across the run, in bytes.
	MemoryDelta int64 `json:"memory_delta"`
	Err         error `json:"-"`
}

// ProgressEvent is emitted on every orchestrator state transition.
type ProgressEvent struct {
	Event     string          `json:"event"`
	Path      string          `json:"path"`
	State     ProcessingState `json:"state"`
	Attempt   int             `json:"attempt,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// DatasetEntry is one key/URL pair of a download manifest.
type DatasetEntry struct {
	Key string `json:"key" yaml:"key"`
	URL string `json:"url" yaml:"url"`
}

// RunReport summarizes a dataset run.
type RunReport struct {
	RunID      string              `json:"run_id"`
	Downloaded int                 `json:"downloaded"`
	Processed  int                 `json:"processed"`
	Failed     int                 `json:"failed"`
	Skipped    int                 `json:"skipped"`
	Elapsed    time.Duration       `json:"elapsed"`
	Outcomes   []ProcessingOutcome `json:"outcomes"`
}
