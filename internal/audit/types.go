package audit

import (
	"time"

	"reconcile/internal/inventory"
	"reconcile/internal/plan"
)

// Status classifies a single deliverable check.
type Status string

const (
	StatusPresent       Status = "present"
	StatusMissing       Status = "missing"
	StatusStub          Status = "stub"
	StatusSymbolMissing Status = "symbol_missing"
	StatusOutsideRoot   Status = "outside_root"
)

// Statuses returns every status in display order.
func Statuses() []Status {
	return []Status{StatusPresent, StatusMissing, StatusStub, StatusSymbolMissing, StatusOutsideRoot}
}

// Severity ranks findings.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// FindingKind names a finding category. Inventory finding kinds are reused
// verbatim.
type FindingKind string

const (
	FindingPhantom       FindingKind = "phantom"
	FindingUnclaimed     FindingKind = "unclaimed"
	FindingStub          FindingKind = "stub"
	FindingSymbolMissing FindingKind = "symbol_missing"
	FindingOutsideRoot   FindingKind = "outside_root"
	FindingCountDrift    FindingKind = "count_drift"
)

// Finding is one discrepancy surfaced by an audit.
type Finding struct {
	Kind     FindingKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Path     string      `json:"path,omitempty"`
	Agent    string      `json:"agent,omitempty"`
	Detail   string      `json:"detail"`
}

// Check is the outcome for one deliverable.
type Check struct {
	Deliverable  plan.Deliverable `json:"deliverable"`
	Status       Status           `json:"status"`
	ResolvedPath string           `json:"resolved_path,omitempty"`
	Detail       string           `json:"detail,omitempty"`
}

// Summary aggregates the checks of one run.
type Summary struct {
	Total          int            `json:"total"`
	Counts         map[Status]int `json:"counts"`
	Verified       int            `json:"verified"`
	Claimed        int            `json:"claimed"`
	Percent        float64        `json:"percent"`
	ClaimedPercent float64        `json:"claimed_percent"`
	Drift          float64        `json:"drift"`
	Empty          bool           `json:"empty"`
}

// Result is a complete audit run.
type Result struct {
	ID         string                  `json:"id"`
	PlanPath   string                  `json:"plan_path"`
	PlanTitle  string                  `json:"plan_title"`
	Root       string                  `json:"root"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Summary    Summary                 `json:"summary"`
	Checks     []Check                 `json:"checks"`
	Findings   []Finding               `json:"findings"`
	Triggers   *inventory.Snapshot     `json:"triggers,omitempty"`
	CountDrift []inventory.CountChange `json:"count_drift,omitempty"`
	Errors     []string                `json:"errors,omitempty"`
	Inventory  *inventory.Inventory    `json:"-"`
	ReportPath string                  `json:"report_path,omitempty"`
}

// Meets reports whether the verified percentage reaches threshold.
func (r *Result) Meets(threshold float64) bool {
	if r == nil {
		return false
	}
	return r.Summary.Percent >= threshold
}

// CountKind returns the number of findings of the given kind.
func (r *Result) CountKind(kind FindingKind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// FindingCounts tallies findings by severity.
func (r *Result) FindingCounts() map[Severity]int {
	counts := map[Severity]int{}
	if r == nil {
		return counts
	}
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}
