package model

import "time"

// RunStatus tracks a scrape job's lifecycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded scrape job.
type Run struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Status     RunStatus  `json:"status"`
	Summary    *Summary   `json:"summary,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Summary is the job-level completion report: how many units were attempted
// versus succeeded, and what the destination did with the records. Partial
// success is the normal case; PagesFailed and PagesEmpty make anomalies
// visible without failing the run.
type Summary struct {
	PagesAttempted int           `json:"pages_attempted"`
	PagesSucceeded int           `json:"pages_succeeded"`
	PagesFailed    int           `json:"pages_failed"`
	PagesEmpty     int           `json:"pages_empty"`
	Records        int           `json:"records"`
	Inserted       int           `json:"inserted"`
	Updated        int           `json:"updated"`
	Failed         int           `json:"failed"`
	Destination    string        `json:"destination,omitempty"`
	Elapsed        time.Duration `json:"elapsed"`
}
