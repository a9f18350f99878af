package api

import (
	"sort"
	"time"

	"reconcile/internal/audit"
	"reconcile/internal/inventory"
	"reconcile/internal/store"
	"reconcile/internal/trigger"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromAuditSummary converts a stored audit row.
func FromAuditSummary(s store.AuditSummary) AuditSummary {
	return AuditSummary{
		ID:             s.ID,
		PlanPath:       s.PlanPath,
		PlanTitle:      s.PlanTitle,
		Root:           s.Root,
		StartedAt:      formatTime(s.StartedAt),
		FinishedAt:     formatTime(s.FinishedAt),
		Total:          s.Total,
		Verified:       s.Verified,
		Claimed:        s.Claimed,
		Percent:        s.Percent,
		ClaimedPercent: s.ClaimedPercent,
		Drift:          s.Drift,
		Findings:       s.Findings,
		ReportPath:     s.ReportPath,
	}
}

// FromAuditSummaries converts a list of stored audit rows.
func FromAuditSummaries(rows []store.AuditSummary) []AuditSummary {
	out := make([]AuditSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromAuditSummary(row))
	}
	return out
}

// SummarizeResult builds the list view of a full audit result.
func SummarizeResult(res *audit.Result) AuditSummary {
	if res == nil {
		return AuditSummary{}
	}
	return AuditSummary{
		ID:             res.ID,
		PlanPath:       res.PlanPath,
		PlanTitle:      res.PlanTitle,
		Root:           res.Root,
		StartedAt:      formatTime(res.StartedAt),
		FinishedAt:     formatTime(res.FinishedAt),
		Total:          res.Summary.Total,
		Verified:       res.Summary.Verified,
		Claimed:        res.Summary.Claimed,
		Percent:        res.Summary.Percent,
		ClaimedPercent: res.Summary.ClaimedPercent,
		Drift:          res.Summary.Drift,
		Findings:       len(res.Findings),
		ReportPath:     res.ReportPath,
	}
}

// FromResult converts a full audit result.
func FromResult(res *audit.Result) Audit {
	if res == nil {
		return Audit{}
	}
	out := Audit{
		Summary:  SummarizeResult(res),
		Checks:   make([]Check, 0, len(res.Checks)),
		Findings: make([]Finding, 0, len(res.Findings)),
		Errors:   res.Errors,
	}
	for _, c := range res.Checks {
		out.Checks = append(out.Checks, Check{
			Line:         c.Deliverable.Line,
			Section:      c.Deliverable.Section,
			Path:         c.Deliverable.Path,
			Symbol:       c.Deliverable.Symbol,
			Claim:        string(c.Deliverable.Claim),
			Status:       string(c.Status),
			ResolvedPath: c.ResolvedPath,
			Detail:       c.Detail,
		})
	}
	for _, f := range res.Findings {
		out.Findings = append(out.Findings, Finding{
			Kind:     string(f.Kind),
			Severity: string(f.Severity),
			Agent:    f.Agent,
			Path:     f.Path,
			Detail:   f.Detail,
		})
	}
	if res.Triggers != nil {
		out.Triggers = countsMap(res.Triggers.Counts)
	}
	for _, c := range res.CountDrift {
		out.CountDrift = append(out.CountDrift, CountChange{
			Agent:  c.Agent,
			State:  string(c.State),
			Before: c.Before,
			After:  c.After,
			Delta:  c.Delta(),
		})
	}
	return out
}

func countsMap(counts map[string]inventory.Counts) map[string]map[string]int {
	out := make(map[string]map[string]int, len(counts))
	for agent, perState := range counts {
		out[agent] = stateCounts(perState)
	}
	return out
}

// stateCounts always lists every lifecycle state so consumers see zeros.
func stateCounts(counts inventory.Counts) map[string]int {
	out := make(map[string]int, len(trigger.States()))
	for _, state := range trigger.States() {
		out[string(state)] = counts[state]
	}
	return out
}

// InventoryFilter narrows the entries and findings returned by FromInventory.
type InventoryFilter struct {
	Agent       string
	State       trigger.State
	WithEntries bool
}

// FromInventory converts a scan result. Counts are never filtered.
func FromInventory(inv *inventory.Inventory, filter InventoryFilter) TriggerInventory {
	if inv == nil {
		return TriggerInventory{}
	}
	out := TriggerInventory{
		Root:      inv.Root,
		ScannedAt: formatTime(inv.ScannedAt),
		Agents:    append([]string(nil), inv.Agents...),
		Counts:    countsMap(inv.Counts),
		Totals:    stateCounts(inv.Totals),
		Findings:  make([]Finding, 0, len(inv.Findings)),
	}
	sort.Strings(out.Agents)
	if filter.WithEntries {
		for _, e := range inv.Filter(filter.Agent, filter.State) {
			out.Entries = append(out.Entries, fromEntry(e))
		}
	}
	for _, f := range inv.Findings {
		if filter.Agent != "" && f.Agent != "" && !trigger.SameAgent(filter.Agent, f.Agent) {
			continue
		}
		out.Findings = append(out.Findings, Finding{
			Kind:   string(f.Kind),
			Agent:  f.Agent,
			Path:   f.Path,
			Detail: f.Detail,
		})
	}
	return out
}

func fromEntry(e inventory.Entry) TriggerEntry {
	entry := TriggerEntry{
		Agent: e.Agent,
		State: string(e.State),
		Path:  e.Path,
		Valid: e.Valid,
		Size:  e.Size,
	}
	if e.Valid {
		entry.Kind = string(e.Name.Kind)
		entry.Title = e.Name.Title
		entry.TaskID = e.Name.TaskID
	}
	entry.Timestamp = formatTime(e.Timestamp())
	if e.Body != nil {
		entry.TargetAgent = e.Body.TargetAgent()
		entry.Priority = e.Body.Priority()
	}
	return entry
}

// FromEvents converts recorded events.
func FromEvents(events []store.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		out = append(out, Event{
			ID:         ev.ID,
			ObservedAt: formatTime(ev.ObservedAt),
			Kind:       ev.Kind,
			Op:         ev.Op,
			Path:       ev.Path,
			Agent:      ev.Agent,
			State:      ev.State,
		})
	}
	return out
}
