package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"reconcile/internal/audit"
	"reconcile/internal/inventory"
	"reconcile/internal/logging"
	"reconcile/internal/plan"
	"reconcile/internal/report"
	"reconcile/internal/testsupport"
	"reconcile/internal/trigger"
)

func sampleResult() *audit.Result {
	finished := time.Date(2026, 10, 19, 14, 30, 5, 0, time.UTC)
	checks := []audit.Check{
		{Deliverable: plan.Deliverable{Line: 3, Path: "music_workflow/dedup.py", Symbol: "find_duplicates", Claim: plan.ClaimChecked}, Status: audit.StatusPresent},
		{Deliverable: plan.Deliverable{Line: 4, Path: "music_workflow/fingerprint.py", Claim: plan.ClaimChecked}, Status: audit.StatusMissing},
	}
	return &audit.Result{
		ID:         "4b1f0c1e-0000-4000-8000-000000000001",
		PlanPath:   "/work/PLAN.md",
		PlanTitle:  "Dédup Rollout: Phase 1",
		Root:       "/work",
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
		Summary:    audit.Summarize(checks),
		Checks:     checks,
		Findings: []audit.Finding{
			{Kind: audit.FindingPhantom, Severity: audit.SeverityCritical, Path: "music_workflow/fingerprint.py", Detail: "line 4 claims music_workflow/fingerprint.py complete but it is missing"},
		},
		Triggers: &inventory.Snapshot{Counts: map[string]inventory.Counts{
			"cursor-mm1": {trigger.StateInbox: 2, trigger.StateProcessed: 4},
		}},
		CountDrift: []inventory.CountChange{{Agent: "cursor-mm1", State: trigger.StateInbox, Before: 5, After: 2}},
		Errors:     []string{"trigger inventory: partial"},
	}
}

func TestFileName(t *testing.T) {
	res := sampleResult()
	if got := report.FileName(res); got != "2026-10-19T14-30-05Z__AUDIT__dedup-rollout-phase-1-4b1f0c1e.md" {
		t.Fatalf("unexpected file name %q", got)
	}
	res.PlanTitle = ""
	if got := report.FileName(res); !strings.HasSuffix(got, "__AUDIT__plan-4b1f0c1e.md") {
		t.Fatalf("expected plan base name fallback, got %q", got)
	}
}

func TestWriteKeepsSameSecondReportsApart(t *testing.T) {
	dir := t.TempDir()
	first := sampleResult()
	first.PlanTitle = "Plan"
	second := sampleResult()
	second.PlanTitle = "Plan"
	second.ID = "9c2d7a10-0000-4000-8000-000000000002"
	second.FinishedAt = first.FinishedAt.Add(400 * time.Millisecond)

	firstPath, err := report.Write(dir, first)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	secondPath, err := report.Write(dir, second)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if firstPath == secondPath {
		t.Fatalf("both audits wrote %s", firstPath)
	}
	data, err := os.ReadFile(firstPath)
	if err != nil {
		t.Fatalf("read first report: %v", err)
	}
	if !strings.Contains(string(data), first.ID) {
		t.Fatal("first report was overwritten")
	}
}

func TestRenderIncludesFrontMatterAndTables(t *testing.T) {
	data, err := report.Render(sampleResult())
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("---\n")) {
		t.Fatalf("expected front matter, got %q", data[:20])
	}
	parts := strings.SplitN(string(data), "---\n", 3)
	if len(parts) != 3 {
		t.Fatalf("front matter not terminated: %q", data)
	}
	var header report.Header
	if err := yaml.Unmarshal([]byte(parts[1]), &header); err != nil {
		t.Fatalf("decode front matter: %v", err)
	}
	if header.AuditID != sampleResult().ID || header.Percent != 50 || header.ClaimedPercent != 100 || header.Drift != 50 {
		t.Fatalf("unexpected header %+v", header)
	}

	body := parts[2]
	for _, want := range []string{
		"# Audit: Dédup Rollout: Phase 1",
		"## Summary",
		"## Deliverables",
		"music_workflow/dedup.py",
		"find_duplicates",
		"## Findings",
		"phantom",
		"## Trigger counts",
		"2 (-3)",
		"## Errors",
		"- trigger inventory: partial",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("report missing %q:\n%s", want, body)
		}
	}
}

func TestRenderEmptyResult(t *testing.T) {
	res := &audit.Result{ID: "x", PlanTitle: "Empty", Summary: audit.Summarize(nil)}
	data, err := report.Render(res)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, "The plan lists no deliverables.") || !strings.Contains(body, "No findings.") {
		t.Fatalf("unexpected empty report:\n%s", body)
	}
	if strings.Contains(body, "## Trigger counts") {
		t.Fatal("trigger section should be omitted without a snapshot")
	}
}

func TestWriteAndPrune(t *testing.T) {
	dir := t.TempDir()
	path, err := report.Write(dir, sampleResult())
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("report written outside dir: %s", path)
	}

	old := filepath.Join(dir, "2025-01-01T00-00-00Z__AUDIT__old.md")
	unrelated := filepath.Join(dir, "notes.md")
	testsupport.WriteFile(t, old, "old")
	testsupport.WriteFile(t, unrelated, "keep")
	now := time.Now()
	testsupport.Touch(t, old, now.AddDate(0, 0, -40))
	testsupport.Touch(t, unrelated, now.AddDate(0, 0, -40))

	removed := report.Prune(logging.NewNop(), dir, 30, now)
	if len(removed) != 1 || filepath.Base(removed[0]) != filepath.Base(old) {
		t.Fatalf("unexpected removed set %v", removed)
	}
	for _, keep := range []string{path, unrelated} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s to remain: %v", keep, err)
		}
	}
	if got := report.Prune(logging.NewNop(), dir, 0, now); len(got) != 0 {
		t.Fatalf("retention 0 must disable pruning, removed %v", got)
	}
}
