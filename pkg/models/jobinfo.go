package models

import "time"

// Status is the canonical job status vocabulary the host job-management
// framework understands. Every remote workspace state maps into it.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusQueuedHeld   Status = "queued_held"
	StatusRunning      Status = "running"
	StatusSuspended    Status = "suspended"
	StatusCompleted    Status = "completed"
	StatusUndetermined Status = "undetermined"
)

// JobInfo is the normalized record returned to the host framework for one
// workspace. It is built fresh on every query and never cached.
type JobInfo struct {
	ID             string            `json:"id"`
	JobName        string            `json:"job_name"`
	Status         Status            `json:"status"`
	JobOwner       string            `json:"job_owner"`
	SubmissionTime time.Time         `json:"submission_time"`
	DispatchTime   time.Time         `json:"dispatch_time"`
	WallclockTime  int64             `json:"wallclock_time"`
	ConnectionInfo ConnectionInfo    `json:"connection_info"`
	Native         map[string]string `json:"native"`
}

// ConnectionInfo describes how to reach a running workspace interactively.
// ErrorLogs holds the structured error messages extracted from the build log
// stream, grouped per log entry.
type ConnectionInfo struct {
	Host      string     `json:"host,omitempty"`
	Port      int        `json:"port"`
	ErrorLogs [][]string `json:"error_logs"`
}
