package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"reconcile/internal/audit"
	"reconcile/internal/fileutil"
	"reconcile/internal/logging"
	"reconcile/internal/textutil"
	"reconcile/internal/trigger"
)

// Marker separates the timestamp from the plan slug in report file names.
const Marker = "__AUDIT__"

const fileTimeLayout = "2006-01-02T15-04-05Z"

// Header is the YAML front matter written at the top of every report.
type Header struct {
	AuditID        string    `yaml:"audit_id"`
	Plan           string    `yaml:"plan"`
	PlanTitle      string    `yaml:"plan_title"`
	Root           string    `yaml:"root"`
	GeneratedAt    time.Time `yaml:"generated_at"`
	Deliverables   int       `yaml:"deliverables"`
	Verified       int       `yaml:"verified"`
	Percent        float64   `yaml:"percent"`
	ClaimedPercent float64   `yaml:"claimed_percent"`
	Drift          float64   `yaml:"drift"`
	Findings       int       `yaml:"findings"`
}

// Length of the audit id prefix that keeps same-second reports of one title
// apart.
const fileIDLength = 8

// FileName returns the report file name for a result:
// {timestamp}__AUDIT__{plan-slug}-{audit id prefix}.md.
func FileName(res *audit.Result) string {
	title := res.PlanTitle
	if strings.TrimSpace(title) == "" {
		base := filepath.Base(res.PlanPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	name := res.FinishedAt.UTC().Format(fileTimeLayout) + Marker + textutil.Slug(title)
	if strings.TrimSpace(res.ID) != "" {
		id := textutil.Slug(res.ID)
		if len(id) > fileIDLength {
			id = strings.TrimRight(id[:fileIDLength], "-")
		}
		name += "-" + id
	}
	return name + ".md"
}

// Write renders res into dir and returns the written path.
func Write(dir string, res *audit.Result) (string, error) {
	if res == nil {
		return "", fmt.Errorf("write report: nil result")
	}
	data, err := Render(res)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(res))
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Prune removes reports older than retentionDays.
func Prune(logger *slog.Logger, dir string, retentionDays int, now time.Time) []string {
	return logging.Prune(logger, retentionDays, now, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "*" + Marker + "*.md",
	})
}

// Render produces the Markdown report for res.
func Render(res *audit.Result) ([]byte, error) {
	header := Header{
		AuditID:        res.ID,
		Plan:           res.PlanPath,
		PlanTitle:      res.PlanTitle,
		Root:           res.Root,
		GeneratedAt:    res.FinishedAt.UTC(),
		Deliverables:   res.Summary.Total,
		Verified:       res.Summary.Verified,
		Percent:        res.Summary.Percent,
		ClaimedPercent: res.Summary.ClaimedPercent,
		Drift:          res.Summary.Drift,
		Findings:       len(res.Findings),
	}
	front, err := yaml.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encode report header: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(front)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# Audit: %s\n\n", res.PlanTitle)

	buf.WriteString("## Summary\n\n")
	buf.WriteString(summaryTable(res))
	buf.WriteString("\n\n")

	buf.WriteString("## Deliverables\n\n")
	if len(res.Checks) == 0 {
		buf.WriteString("The plan lists no deliverables.\n\n")
	} else {
		buf.WriteString(checksTable(res.Checks))
		buf.WriteString("\n\n")
	}

	buf.WriteString("## Findings\n\n")
	if len(res.Findings) == 0 {
		buf.WriteString("No findings.\n\n")
	} else {
		buf.WriteString(findingsTable(res.Findings))
		buf.WriteString("\n\n")
	}

	if res.Triggers != nil {
		buf.WriteString("## Trigger counts\n\n")
		buf.WriteString(triggerTable(res))
		buf.WriteString("\n\n")
	}

	if len(res.Errors) > 0 {
		buf.WriteString("## Errors\n\n")
		for _, e := range res.Errors {
			fmt.Fprintf(&buf, "- %s\n", e)
		}
		buf.WriteString("\n")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func newMarkdownTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(header)
	return tw
}

func summaryTable(res *audit.Result) string {
	s := res.Summary
	tw := newMarkdownTable(table.Row{"Metric", "Value"})
	tw.AppendRow(table.Row{"Deliverables", s.Total})
	tw.AppendRow(table.Row{"Verified", s.Verified})
	tw.AppendRow(table.Row{"Claimed", s.Claimed})
	tw.AppendRow(table.Row{"Verified %", formatPercent(s.Percent)})
	tw.AppendRow(table.Row{"Claimed %", formatPercent(s.ClaimedPercent)})
	tw.AppendRow(table.Row{"Drift", formatSigned(s.Drift)})
	for _, status := range audit.Statuses() {
		tw.AppendRow(table.Row{"Status " + string(status), s.Counts[status]})
	}
	return tw.RenderMarkdown()
}

func checksTable(checks []audit.Check) string {
	tw := newMarkdownTable(table.Row{"Line", "Claim", "Status", "Path", "Symbol", "Detail"})
	for _, c := range checks {
		d := c.Deliverable
		tw.AppendRow(table.Row{d.Line, string(d.Claim), string(c.Status), d.Path, d.Symbol, c.Detail})
	}
	return tw.RenderMarkdown()
}

func findingsTable(findings []audit.Finding) string {
	tw := newMarkdownTable(table.Row{"Severity", "Kind", "Agent", "Path", "Detail"})
	for _, f := range findings {
		tw.AppendRow(table.Row{string(f.Severity), string(f.Kind), f.Agent, f.Path, f.Detail})
	}
	return tw.RenderMarkdown()
}

func triggerTable(res *audit.Result) string {
	header := table.Row{"Agent"}
	for _, state := range trigger.States() {
		header = append(header, string(state))
	}
	header = append(header, "Total")
	tw := newMarkdownTable(header)

	agents := make([]string, 0, len(res.Triggers.Counts))
	for agent := range res.Triggers.Counts {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	for _, agent := range agents {
		counts := res.Triggers.Counts[agent]
		row := table.Row{agent}
		for _, state := range trigger.States() {
			row = append(row, cell(counts[state], deltaFor(res, agent, state)))
		}
		row = append(row, counts.Total())
		tw.AppendRow(row)
	}
	return tw.RenderMarkdown()
}

func deltaFor(res *audit.Result, agent string, state trigger.State) int {
	for _, c := range res.CountDrift {
		if c.Agent == agent && c.State == state {
			return c.Delta()
		}
	}
	return 0
}

func cell(count, delta int) string {
	if delta == 0 {
		return strconv.Itoa(count)
	}
	return fmt.Sprintf("%d (%+d)", count, delta)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func formatSigned(v float64) string {
	if v > 0 {
		return "+" + strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
