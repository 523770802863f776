package pipeline

import "github.com/jonathan/transcript-pipeline/internal/types"

// JobFailure describes one job that ended in a failed state during a run.
type JobFailure struct {
	Key    string       `json:"key"`
	Source string       `json:"source"`
	Status types.Status `json:"status"`
	Stage  Stage        `json:"stage"`
	Error  string       `json:"error"`
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID string `json:"run_id"`
	// Total is the number of distinct jobs after expansion and de-duplication.
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	// Deferred jobs were left for a later run because the per-run cap was reached.
	Deferred   int          `json:"deferred"`
	Completed  int          `json:"completed"`
	Healed     int          `json:"healed"`
	Reconciled int          `json:"reconciled"`
	Failures   []JobFailure `json:"failures,omitempty"`
}

// ProgressEvent is emitted as jobs move through the pipeline.
type ProgressEvent struct {
	RunID   string       `json:"run_id"`
	Index   int          `json:"index"`
	Total   int          `json:"total"`
	Key     string       `json:"key"`
	Stage   Stage        `json:"stage,omitempty"`
	Status  types.Status `json:"status"`
	Message string       `json:"message"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)
