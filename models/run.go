package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID            int64      `json:"id" db:"id"`
	RunKey        string     `json:"run_key" db:"run_key"`
	SiteID        string     `json:"site_id" db:"site_id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	QueriesRun    int        `json:"queries_run" db:"queries_run"`
	QueriesFailed int        `json:"queries_failed" db:"queries_failed"`
	RecordsFound  int        `json:"records_found" db:"records_found"`
	RecordsNew    int        `json:"records_new" db:"records_new"`
	PagesScraped  int        `json:"pages_scraped" db:"pages_scraped"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
	ErrorMessage  string     `json:"error_message" db:"error_message"`
}

type SiteStats struct {
	SiteID            string     `json:"site_id" db:"site_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalRecords      int        `json:"total_records" db:"total_records"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}

// ExportFile is one artifact written at the end of a run.
type ExportFile struct {
	ID        int64     `json:"id" db:"id"`
	RunID     int64     `json:"run_id" db:"run_id"`
	Path      string    `json:"path" db:"path"`
	Format    string    `json:"format" db:"format"`
	Rows      int       `json:"rows" db:"rows"`
	S3Key     string    `json:"s3_key" db:"s3_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
