package models

import "time"

// UpdateRunStatus is the outcome of a guide rebuild.
type UpdateRunStatus string

const (
	// UpdateRunSucceeded means every source was stored persistently.
	UpdateRunSucceeded UpdateRunStatus = "succeeded"
	// UpdateRunDegraded means at least one document fell back to memory only.
	UpdateRunDegraded UpdateRunStatus = "degraded"
	// UpdateRunFailed means no document could be loaded.
	UpdateRunFailed UpdateRunStatus = "failed"
)

// UpdateRun records one guide rebuild.
type UpdateRun struct {
	ID         ULID            `gorm:"primaryKey" json:"id"`
	StartedAt  time.Time       `gorm:"index" json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     UpdateRunStatus `gorm:"size:16" json:"status"`
	Sources    int             `json:"sources"`
	FailedURLs int             `json:"failed_sources"`
	Channels   int             `json:"channels"`
	Programs   int             `json:"programs"`
	Dropped    int             `json:"dropped"`
	Message    string          `gorm:"type:text" json:"message,omitempty"`
}

// TableName returns the table name for update runs.
func (UpdateRun) TableName() string {
	return "update_runs"
}

// Duration returns how long the run took.
func (r *UpdateRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
