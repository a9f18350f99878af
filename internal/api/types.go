package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// AuditSummary describes one stored audit run.
type AuditSummary struct {
	ID             string  `json:"id"`
	PlanPath       string  `json:"planPath"`
	PlanTitle      string  `json:"planTitle"`
	Root           string  `json:"root"`
	StartedAt      string  `json:"startedAt,omitempty"`
	FinishedAt     string  `json:"finishedAt,omitempty"`
	Total          int     `json:"total"`
	Verified       int     `json:"verified"`
	Claimed        int     `json:"claimed"`
	Percent        float64 `json:"percent"`
	ClaimedPercent float64 `json:"claimedPercent"`
	Drift          float64 `json:"drift"`
	Findings       int     `json:"findings"`
	ReportPath     string  `json:"reportPath,omitempty"`
}

// Check is a classified deliverable.
type Check struct {
	Line         int    `json:"line"`
	Section      string `json:"section,omitempty"`
	Path         string `json:"path"`
	Symbol       string `json:"symbol,omitempty"`
	Claim        string `json:"claim"`
	Status       string `json:"status"`
	ResolvedPath string `json:"resolvedPath,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

// Finding is an audit or inventory problem.
type Finding struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity,omitempty"`
	Agent    string `json:"agent,omitempty"`
	Path     string `json:"path,omitempty"`
	Detail   string `json:"detail"`
}

// CountChange is a per-agent, per-state count difference between snapshots.
type CountChange struct {
	Agent  string `json:"agent"`
	State  string `json:"state"`
	Before int    `json:"before"`
	After  int    `json:"after"`
	Delta  int    `json:"delta"`
}

// Audit is the full view of one audit run.
type Audit struct {
	Summary    AuditSummary              `json:"summary"`
	Checks     []Check                   `json:"checks"`
	Findings   []Finding                 `json:"findings"`
	Triggers   map[string]map[string]int `json:"triggers,omitempty"`
	CountDrift []CountChange             `json:"countDrift,omitempty"`
	Errors     []string                  `json:"errors,omitempty"`
}

// TriggerEntry is one trigger file on disk.
type TriggerEntry struct {
	Agent       string `json:"agent"`
	State       string `json:"state"`
	Path        string `json:"path"`
	Valid       bool   `json:"valid"`
	Kind        string `json:"kind,omitempty"`
	Title       string `json:"title,omitempty"`
	TaskID      string `json:"taskId,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	TargetAgent string `json:"targetAgent,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Size        int64  `json:"size"`
}

// TriggerInventory is a read-only view of the trigger folders.
type TriggerInventory struct {
	Root      string                    `json:"root"`
	ScannedAt string                    `json:"scannedAt"`
	Agents    []string                  `json:"agents"`
	Counts    map[string]map[string]int `json:"counts"`
	Totals    map[string]int            `json:"totals"`
	Entries   []TriggerEntry            `json:"entries,omitempty"`
	Findings  []Finding                 `json:"findings"`
}

// Event is a file change recorded by the daemon.
type Event struct {
	ID         int64  `json:"id"`
	ObservedAt string `json:"observedAt"`
	Kind       string `json:"kind"`
	Op         string `json:"op"`
	Path       string `json:"path"`
	Agent      string `json:"agent,omitempty"`
	State      string `json:"state,omitempty"`
}

// PlanStatus reports the daemon's view of one watched plan.
type PlanStatus struct {
	Path      string        `json:"path"`
	LastAudit *AuditSummary `json:"lastAudit,omitempty"`
	LastError string        `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	StartedAt    string       `json:"startedAt,omitempty"`
	DatabasePath string       `json:"databasePath"`
	LockFilePath string       `json:"lockFilePath"`
	TriggersDir  string       `json:"triggersDir"`
	LastScan     string       `json:"lastScan,omitempty"`
	Plans        []PlanStatus `json:"plans"`
}

// AuditListResponse wraps a collection of audit summaries.
type AuditListResponse struct {
	Audits []AuditSummary `json:"audits"`
}

// AuditResponse wraps a single audit.
type AuditResponse struct {
	Audit Audit `json:"audit"`
}

// EventListResponse wraps recorded events.
type EventListResponse struct {
	Events []Event `json:"events"`
}
