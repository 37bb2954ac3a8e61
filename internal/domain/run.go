package domain

import "time"

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// IngestionRun records one pipeline execution against a source. A run is
// created with status running, mutated exactly once when it finishes, and
// is an immutable audit record afterward.
type IngestionRun struct {
	ID         string     `json:"id"`
	SourceID   string     `json:"source_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	ItemsFound int        `json:"items_found"`
	ItemsSaved int        `json:"items_saved"`
	Errors     string     `json:"errors,omitempty"`
}

// Finished reports whether the run has reached a terminal status.
func (r *IngestionRun) Finished() bool {
	return r.Status != RunRunning
}
