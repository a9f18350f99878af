package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"reconcile/internal/audit"
	"reconcile/internal/inventory"
	"reconcile/internal/plan"
	"reconcile/internal/store"
	"reconcile/internal/testsupport"
	"reconcile/internal/trigger"
)

func sampleResult(id, planPath string, finished time.Time) *audit.Result {
	checks := []audit.Check{
		{
			Deliverable:  plan.Deliverable{Line: 3, Section: "Phase 1", Text: "`a.go`", Path: "a.go", Claim: plan.ClaimChecked},
			Status:       audit.StatusPresent,
			ResolvedPath: "/ws/a.go",
		},
		{
			Deliverable: plan.Deliverable{Line: 4, Path: "b.go", Symbol: "Run", Claim: plan.ClaimChecked},
			Status:      audit.StatusMissing,
		},
	}
	snap := inventory.Snapshot{
		TakenAt:  finished,
		Root:     "/triggers",
		Findings: 1,
		Counts:   map[string]inventory.Counts{"cursor-mm1": {trigger.StateInbox: 2, trigger.StateProcessed: 1}},
	}
	return &audit.Result{
		ID:         id,
		PlanPath:   planPath,
		PlanTitle:  "Plan",
		Root:       "/ws",
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
		Summary:    audit.Summarize(checks),
		Checks:     checks,
		Findings: []audit.Finding{
			{Kind: audit.FindingPhantom, Severity: audit.SeverityCritical, Path: "b.go", Detail: "claimed but missing"},
			{Kind: audit.FindingCountDrift, Severity: audit.SeverityInfo, Agent: "cursor-mm1", Detail: "inbox count changed"},
		},
		Triggers:   &snap,
		CountDrift: []inventory.CountChange{{Agent: "cursor-mm1", State: trigger.StateInbox, Before: 1, After: 2}},
		Errors:     []string{"partial"},
	}
}

func TestSaveAndGetAuditRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	finished := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	want := sampleResult("audit-1", "/ws/PLAN.md", finished)
	if err := s.SaveAudit(ctx, want); err != nil {
		t.Fatalf("SaveAudit failed: %v", err)
	}

	got, err := s.GetAudit(ctx, "audit-1")
	if err != nil {
		t.Fatalf("GetAudit failed: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(audit.Result{}, "Inventory"), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces rather than duplicating children.
	if err := s.SaveAudit(ctx, want); err != nil {
		t.Fatalf("second SaveAudit failed: %v", err)
	}
	got, err = s.GetAudit(ctx, "audit-1")
	if err != nil {
		t.Fatalf("GetAudit failed: %v", err)
	}
	if len(got.Checks) != 2 || len(got.Findings) != 2 {
		t.Fatalf("expected children replaced, got %d checks %d findings", len(got.Checks), len(got.Findings))
	}
}

func TestGetAuditNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)

	if _, err := s.GetAudit(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetReportPath(context.Background(), "missing", "/tmp/x.md"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from SetReportPath, got %v", err)
	}
}

func TestListAndLatestAudits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a1", "a2", "a3"} {
		if err := s.SaveAudit(ctx, sampleResult(id, "/ws/PLAN.md", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveAudit %s failed: %v", id, err)
		}
	}
	if err := s.SaveAudit(ctx, sampleResult("other", "/ws/OTHER.md", base.Add(10*time.Hour))); err != nil {
		t.Fatalf("SaveAudit failed: %v", err)
	}

	all, err := s.ListAudits(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListAudits failed: %v", err)
	}
	if len(all) != 4 || all[0].ID != "other" {
		t.Fatalf("unexpected list %+v", all)
	}

	filtered, err := s.ListAudits(ctx, "/ws/PLAN.md", 2)
	if err != nil {
		t.Fatalf("ListAudits failed: %v", err)
	}
	var ids []string
	for _, a := range filtered {
		ids = append(ids, a.ID)
	}
	if diff := cmp.Diff([]string{"a3", "a2"}, ids); diff != "" {
		t.Fatalf("filtered ids mismatch (-want +got):\n%s", diff)
	}
	if filtered[0].Percent != 50 || filtered[0].Findings != 2 {
		t.Fatalf("unexpected summary %+v", filtered[0])
	}

	latest, err := s.LatestAudit(ctx, "/ws/PLAN.md")
	if err != nil {
		t.Fatalf("LatestAudit failed: %v", err)
	}
	if latest.ID != "a3" {
		t.Fatalf("expected a3, got %s", latest.ID)
	}
	if _, err := s.LatestAudit(ctx, "/ws/NONE.md"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetReportPath(ctx, "a3", "/reports/a3.md"); err != nil {
		t.Fatalf("SetReportPath failed: %v", err)
	}
	latest, _ = s.LatestAudit(ctx, "/ws/PLAN.md")
	if latest.ReportPath != "/reports/a3.md" {
		t.Fatalf("expected report path recorded, got %q", latest.ReportPath)
	}

	removed, err := s.DeleteAuditsBefore(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("DeleteAuditsBefore failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 audits removed, got %d", removed)
	}
}

func TestSnapshots(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := s.LatestSnapshot(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	older := inventory.Snapshot{
		TakenAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Root:    "/triggers",
		Counts:  map[string]inventory.Counts{"a": {trigger.StateInbox: 1}},
	}
	newer := inventory.Snapshot{
		TakenAt: time.Date(2026, 10, 1, 0, 0, 0, 500, time.UTC),
		Root:    "/triggers",
		Counts:  map[string]inventory.Counts{"a": {trigger.StateInbox: 0, trigger.StateProcessed: 1}},
	}
	if _, err := s.SaveSnapshot(ctx, newer); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if _, err := s.SaveSnapshot(ctx, older); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if diff := cmp.Diff(newer, *got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.RecordEvent(ctx, store.Event{
			ObservedAt: base.Add(time.Duration(i) * time.Minute),
			Kind:       "trigger",
			Op:         "create",
			Path:       "/triggers/a/01_inbox/x.json",
			Agent:      "a",
			State:      string(trigger.StateInbox),
		})
		if err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}
	if _, err := s.RecordEvent(ctx, store.Event{Kind: "trigger"}); err == nil {
		t.Fatal("expected validation error")
	}

	events, err := s.RecentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(events) != 2 || !events[0].ObservedAt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].Agent != "a" || events[0].State != "inbox" {
		t.Fatalf("unexpected event fields %+v", events[0])
	}

	pruned, err := s.PruneEvents(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("PruneEvents failed: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("expected 2 events pruned, got %d", pruned)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := s.SaveAudit(ctx, sampleResult("h1", "/ws/PLAN.md", time.Now().UTC())); err != nil {
		t.Fatalf("SaveAudit failed: %v", err)
	}
	health, err := s.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health %+v", health)
	}
	if len(health.MissingTables) != 0 || health.TotalAudits != 1 {
		t.Fatalf("unexpected table health %+v", health)
	}
	if health.SchemaVersion != "002_event_indexes" {
		t.Fatalf("unexpected schema version %q", health.SchemaVersion)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	second := testsupport.MustOpenStore(t, cfg)
	if second.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected path %q", second.Path())
	}
}
