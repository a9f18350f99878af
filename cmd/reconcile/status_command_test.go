package main

import (
	"encoding/json"
	"errors"
	"os"
	"testing"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Reconcile status")
	requireContains(t, out, "not running")
	requireContains(t, out, "Triggers directory")

	if _, _, err := runCLI(t, []string{"audit", env.planPath, "--write-report=false"}, env.configPath); err != nil {
		t.Fatalf("audit: %v", err)
	}
	out, _, err = runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.Ready || report.Health == nil || report.Health.TotalAudits != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestStatusCommandReportsMissingTriggers(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.RemoveAll(env.cfg.Paths.TriggersDir); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	var exit exitError
	if !errors.As(err, &exit) || exit.code != 1 {
		t.Fatalf("expected exit status 1, got %v", err)
	}
	requireContains(t, out, "does not exist")
}

func TestStatusCommandJSONExitsNonZeroWhenNotReady(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.RemoveAll(env.cfg.Paths.TriggersDir); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	var exit exitError
	if !errors.As(err, &exit) || exit.code != 1 {
		t.Fatalf("expected exit status 1, got %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Ready {
		t.Fatalf("expected not ready, got %+v", report)
	}
}
