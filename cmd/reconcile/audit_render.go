package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"reconcile/internal/api"
	"reconcile/internal/trigger"
)

func renderAudit(w io.Writer, a api.Audit, color bool) {
	s := a.Summary
	title := s.PlanTitle
	if title == "" {
		title = s.PlanPath
	}
	for _, line := range renderSectionHeader("Audit: "+title, color) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, renderLabel("Audit ID", s.ID))
	fmt.Fprintln(w, renderLabel("Plan", s.PlanPath))
	fmt.Fprintln(w, renderLabel("Root", s.Root))
	if s.FinishedAt != "" {
		fmt.Fprintln(w, renderLabel("Finished", s.FinishedAt))
	}
	verified := fmt.Sprintf("%d/%d (%s)", s.Verified, s.Total, formatPercent(s.Percent))
	fmt.Fprintln(w, renderLabel("Verified", colorize(verified, percentColor(s.Percent), color && s.Total > 0)))
	fmt.Fprintln(w, renderLabel("Claimed", fmt.Sprintf("%d/%d (%s)", s.Claimed, s.Total, formatPercent(s.ClaimedPercent))))
	drift := fmt.Sprintf("%+.1f pts", s.Drift)
	if s.Drift > 0 {
		drift = colorize(drift, ansiYellow, color)
	}
	fmt.Fprintln(w, renderLabel("Claim drift", drift))
	if s.ReportPath != "" {
		fmt.Fprintln(w, renderLabel("Report", s.ReportPath))
	}
	fmt.Fprintln(w)

	if len(a.Checks) == 0 {
		fmt.Fprintln(w, "The plan lists no deliverables.")
	} else {
		rows := make([][]string, 0, len(a.Checks))
		for _, c := range a.Checks {
			rows = append(rows, []string{
				strconv.Itoa(c.Line),
				claimMark(c.Claim),
				c.Path,
				c.Symbol,
				colorize(c.Status, statusColor(c.Status), color),
				c.Detail,
			})
		}
		fmt.Fprintln(w, renderTable([]string{"Line", "Claim", "Path", "Symbol", "Status", "Detail"}, rows))
	}
	fmt.Fprintln(w)

	renderFindings(w, a.Findings, color)

	if len(a.Triggers) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTriggerCounts(a.Triggers, a.CountDrift))
	}

	if len(a.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, colorize("Errors:", ansiRed, color))
		for _, e := range a.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}

func renderFindings(w io.Writer, findings []api.Finding, color bool) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		severity := f.Severity
		if severity == "" {
			severity = "-"
		}
		rows = append(rows, []string{
			colorize(severity, severityColor(f.Severity), color),
			f.Kind,
			f.Agent,
			f.Path,
			f.Detail,
		})
	}
	fmt.Fprintln(w, renderTable([]string{"Severity", "Kind", "Agent", "Path", "Detail"}, rows))
}

// renderTriggerCounts prints per-agent lifecycle counts; cells carry the
// change since the previous snapshot when there is one.
func renderTriggerCounts(counts map[string]map[string]int, drift []api.CountChange) string {
	deltas := map[string]int{}
	for _, c := range drift {
		deltas[c.Agent+"/"+c.State] = c.Delta
	}
	agents := make([]string, 0, len(counts))
	for agent := range counts {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	headers := []string{"Agent"}
	for _, state := range trigger.States() {
		headers = append(headers, string(state))
	}
	rows := make([][]string, 0, len(agents))
	for _, agent := range agents {
		row := []string{agent}
		for _, state := range trigger.States() {
			n := counts[agent][string(state)]
			cell := strconv.Itoa(n)
			if d := deltas[agent+"/"+string(state)]; d != 0 {
				cell = fmt.Sprintf("%d (%+d)", n, d)
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows)
}

func claimMark(claim string) string {
	switch claim {
	case "checked":
		return "[x]"
	case "unchecked":
		return "[ ]"
	default:
		return "-"
	}
}

func formatPercent(v float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(v, 'f', 1, 64), ".0") + "%"
}
