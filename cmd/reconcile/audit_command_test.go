package main

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"reconcile/internal/api"
)

func TestAuditCommandRendersTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"audit", env.planPath, "--write-report=false"}, env.configPath)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	requireContains(t, out, "Audit: Launch checklist")
	requireContains(t, out, "1/3 (33.3%)")
	requireContains(t, out, "2/3 (66.7%)")
	requireContains(t, out, "app/ghost.go")
	requireContains(t, out, "phantom")
	requireContains(t, out, "cursor-mm1")
}

func TestAuditCommandJSONAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"audit", env.planPath, "--json", "--write-report"}, env.configPath)
	if err != nil {
		t.Fatalf("audit --json: %v", err)
	}
	var view api.Audit
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode audit json: %v\n%s", err, out)
	}
	if view.Summary.Total != 3 || view.Summary.Verified != 1 || view.Summary.ReportPath == "" {
		t.Fatalf("unexpected summary %+v", view.Summary)
	}
	if _, err := os.Stat(view.Summary.ReportPath); err != nil {
		t.Fatalf("expected report file: %v", err)
	}

	out, _, err = runCLI(t, []string{"history", "--plan", env.planPath, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var list api.AuditListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode history json: %v", err)
	}
	if len(list.Audits) != 1 || list.Audits[0].ID != view.Summary.ID {
		t.Fatalf("unexpected history %+v", list.Audits)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history table: %v", err)
	}
	requireContains(t, out, view.Summary.ID)

	out, _, err = runCLI(t, []string{"show", view.Summary.ID}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Launch checklist")

	if _, _, err := runCLI(t, []string{"show", "does-not-exist"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown audit id")
	}
}

func TestAuditCommandFailUnder(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"audit", env.planPath, "--no-store", "--write-report=false", "--fail-under", "50"}, env.configPath)
	var exit exitError
	if !errors.As(err, &exit) || exit.code != 2 {
		t.Fatalf("expected exit status 2, got %v", err)
	}
	requireContains(t, exit.message, "below --fail-under 50%")

	if _, _, err := runCLI(t, []string{"audit", env.planPath, "--no-store", "--write-report=false", "--fail-under", "30"}, env.configPath); err != nil {
		t.Fatalf("expected pass at 30%%: %v", err)
	}
	if _, _, err := runCLI(t, []string{"audit", env.planPath, "--fail-under", "120"}, env.configPath); err == nil {
		t.Fatal("expected range error")
	}
}

func TestAuditCommandNoSymbols(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.planPath, []byte("- [x] `app/main.go` `func Missing`\n"), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	out, _, err := runCLI(t, []string{"audit", env.planPath, "--no-store", "--write-report=false", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	var view api.Audit
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Checks[0].Status != "symbol_missing" {
		t.Fatalf("expected symbol_missing, got %s", view.Checks[0].Status)
	}

	out, _, err = runCLI(t, []string{"audit", env.planPath, "--no-store", "--write-report=false", "--json", "--no-symbols"}, env.configPath)
	if err != nil {
		t.Fatalf("audit --no-symbols: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Checks[0].Status != "present" {
		t.Fatalf("expected present, got %s", view.Checks[0].Status)
	}
}

func TestAuditCommandRequiresPlanArg(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"audit"}, env.configPath); err == nil {
		t.Fatal("expected argument error")
	}
}
