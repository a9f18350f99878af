package api_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reconcile/internal/api"
	"reconcile/internal/audit"
	"reconcile/internal/inventory"
	"reconcile/internal/plan"
	"reconcile/internal/store"
	"reconcile/internal/trigger"
)

func TestFromResult(t *testing.T) {
	finished := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	checks := []audit.Check{{
		Deliverable: plan.Deliverable{Line: 2, Path: "a.go", Claim: plan.ClaimChecked},
		Status:      audit.StatusMissing,
	}}
	res := &audit.Result{
		ID:         "id-1",
		PlanPath:   "/ws/PLAN.md",
		FinishedAt: finished,
		Summary:    audit.Summarize(checks),
		Checks:     checks,
		Findings:   []audit.Finding{{Kind: audit.FindingPhantom, Severity: audit.SeverityCritical, Path: "a.go", Detail: "x"}},
		Triggers:   &inventory.Snapshot{Counts: map[string]inventory.Counts{"codex": {trigger.StateInbox: 1}}},
		CountDrift: []inventory.CountChange{{Agent: "codex", State: trigger.StateInbox, Before: 3, After: 1}},
	}

	got := api.FromResult(res)
	if got.Summary.FinishedAt != "2026-10-19T12:00:00.000Z" || got.Summary.Findings != 1 {
		t.Fatalf("unexpected summary %+v", got.Summary)
	}
	if got.Checks[0].Claim != "checked" || got.Checks[0].Status != "missing" {
		t.Fatalf("unexpected check %+v", got.Checks[0])
	}
	wantCounts := map[string]map[string]int{"codex": {"inbox": 1, "processed": 0, "archive": 0, "failed": 0}}
	if diff := cmp.Diff(wantCounts, got.Triggers); diff != "" {
		t.Fatalf("trigger counts mismatch (-want +got):\n%s", diff)
	}
	if got.CountDrift[0].Delta != -2 {
		t.Fatalf("unexpected drift %+v", got.CountDrift)
	}
}

func TestFromInventoryFilters(t *testing.T) {
	inv := &inventory.Inventory{
		Root:   "/triggers",
		Agents: []string{"codex", "claude-mm1"},
		Entries: []inventory.Entry{
			{Agent: "codex", State: trigger.StateInbox, Path: "/t/codex/01_inbox/a.json", Valid: true,
				Name: trigger.Name{Kind: trigger.KindInfo, Title: "a", TaskID: "1"}},
			{Agent: "claude-mm1", State: trigger.StateInbox, Path: "/t/claude-mm1/01_inbox/b.json"},
		},
		Counts: map[string]inventory.Counts{"codex": {trigger.StateInbox: 1}, "claude-mm1": {trigger.StateInbox: 1}},
		Totals: inventory.Counts{trigger.StateInbox: 2},
		Findings: []inventory.Finding{
			{Kind: inventory.FindingInvalidName, Agent: "claude-mm1", Detail: "bad"},
			{Kind: inventory.FindingMissingAgent, Detail: "no folder"},
		},
	}

	got := api.FromInventory(inv, api.InventoryFilter{Agent: "Codex", WithEntries: true})
	if len(got.Entries) != 1 || got.Entries[0].Kind != "INFO" {
		t.Fatalf("unexpected entries %+v", got.Entries)
	}
	if len(got.Findings) != 1 || got.Findings[0].Kind != "missing_agent" {
		t.Fatalf("unexpected findings %+v", got.Findings)
	}
	if got.Totals["inbox"] != 2 || got.Agents[0] != "claude-mm1" {
		t.Fatalf("unexpected totals or agents %+v", got)
	}
	if len(api.FromInventory(inv, api.InventoryFilter{}).Entries) != 0 {
		t.Fatal("entries should be omitted unless requested")
	}
}

func TestFromEvents(t *testing.T) {
	got := api.FromEvents([]store.Event{{ID: 7, ObservedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Kind: "plan", Op: "write", Path: "/p.md"}})
	want := []api.Event{{ID: 7, ObservedAt: "2026-01-02T03:04:05.000Z", Kind: "plan", Op: "write", Path: "/p.md"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}
