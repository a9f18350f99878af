package inventory

import (
	"time"

	"reconcile/internal/trigger"
)

// FindingKind classifies an inventory problem.
type FindingKind string

const (
	FindingInvalidName  FindingKind = "invalid_name"
	FindingInvalidBody  FindingKind = "invalid_body"
	FindingStale        FindingKind = "stale"
	FindingDuplicate    FindingKind = "duplicate"
	FindingMisrouted    FindingKind = "misrouted"
	FindingUnknownDir   FindingKind = "unknown_dir"
	FindingMissingAgent FindingKind = "missing_agent"
)

// Finding describes a single inventory problem.
type Finding struct {
	Kind   FindingKind `json:"kind"`
	Agent  string      `json:"agent,omitempty"`
	Path   string      `json:"path,omitempty"`
	Detail string      `json:"detail"`
}

// Entry is one trigger file found on disk.
type Entry struct {
	Agent   string        `json:"agent"`
	State   trigger.State `json:"state"`
	Path    string        `json:"path"`
	Name    trigger.Name  `json:"name"`
	Valid   bool          `json:"valid"`
	ModTime time.Time     `json:"mod_time"`
	Size    int64         `json:"size"`
	Body    *trigger.Body `json:"body,omitempty"`
}

// Timestamp returns the name timestamp, falling back to the file mtime when
// the name could not be parsed.
func (e Entry) Timestamp() time.Time {
	if e.Valid && !e.Name.Timestamp.IsZero() {
		return e.Name.Timestamp
	}
	return e.ModTime
}

// Counts maps lifecycle states to file counts.
type Counts map[trigger.State]int

// Total sums the counts across states.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Inventory is the result of a scan.
type Inventory struct {
	Root      string            `json:"root"`
	ScannedAt time.Time         `json:"scanned_at"`
	Agents    []string          `json:"agents"`
	Entries   []Entry           `json:"entries"`
	Counts    map[string]Counts `json:"counts"`
	Totals    Counts            `json:"totals"`
	Findings  []Finding         `json:"findings,omitempty"`
}

// FindingsOfKind filters findings by kind.
func (inv *Inventory) FindingsOfKind(kind FindingKind) []Finding {
	if inv == nil {
		return nil
	}
	var out []Finding
	for _, f := range inv.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Filter returns the entries matching agent and state. Empty values match everything.
func (inv *Inventory) Filter(agent string, state trigger.State) []Entry {
	if inv == nil {
		return nil
	}
	var out []Entry
	for _, e := range inv.Entries {
		if agent != "" && !trigger.SameAgent(agent, e.Agent) {
			continue
		}
		if state != "" && e.State != state {
			continue
		}
		out = append(out, e)
	}
	return out
}
