package store

import "time"

// AuditSummary is the list view of a stored audit.
type AuditSummary struct {
	ID             string    `json:"id"`
	PlanPath       string    `json:"plan_path"`
	PlanTitle      string    `json:"plan_title"`
	Root           string    `json:"root"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Total          int       `json:"total"`
	Verified       int       `json:"verified"`
	Claimed        int       `json:"claimed"`
	Percent        float64   `json:"percent"`
	ClaimedPercent float64   `json:"claimed_percent"`
	Drift          float64   `json:"drift"`
	Findings       int       `json:"findings"`
	ReportPath     string    `json:"report_path,omitempty"`
}

// Event is a trigger or plan file change observed by the daemon.
type Event struct {
	ID         int64     `json:"id"`
	ObservedAt time.Time `json:"observed_at"`
	Kind       string    `json:"kind"`
	Op         string    `json:"op"`
	Path       string    `json:"path"`
	Agent      string    `json:"agent,omitempty"`
	State      string    `json:"state,omitempty"`
}

// DatabaseHealth captures diagnostic information about the audit database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TablesPresent    []string `json:"tables_present"`
	MissingTables    []string `json:"missing_tables,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalAudits      int      `json:"total_audits"`
	TotalEvents      int      `json:"total_events"`
	Error            string   `json:"error,omitempty"`
}
