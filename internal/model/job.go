// internal/model/job.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// JobResult summarizes one batch run. Duration serializes as
// milliseconds for parity with the admin dashboard's expectations.
type JobResult struct {
	Success    bool          `json:"success"`
	Processed  int           `json:"processed"`
	Errors     int           `json:"errors"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	Message    string        `json:"message,omitempty"`
}

func NewJobResult(success bool, processed, errs int, duration time.Duration, message string) JobResult {
	return JobResult{
		Success:    success,
		Processed:  processed,
		Errors:     errs,
		Duration:   duration,
		DurationMS: duration.Milliseconds(),
		Message:    message,
	}
}

// NotificationBatchEntry exists only for the duration of one
// orchestrator run: who earned what, pending a single flush.
type NotificationBatchEntry struct {
	UserID           uuid.UUID
	AchievementIDs   []uuid.UUID
	CertificationIDs []uuid.UUID
}

// ActiveUser is the narrow projection the orchestrator walks.
type ActiveUser struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// JobStatus is the snapshot served by the admin status endpoint.
type JobStatus struct {
	DailyRunning bool `json:"daily_running"`
	StatsRunning bool `json:"stats_running"`
}
