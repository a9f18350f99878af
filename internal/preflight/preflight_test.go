package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"reconcile/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir, AccessReadWrite)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "read/write ok") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"), AccessRead)
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f, AccessRead)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCreatable(t *testing.T) {
	base := t.TempDir()
	result := CheckCreatable("reports", filepath.Join(base, "a", "b"))
	if !result.Passed || !strings.Contains(result.Detail, "created on first use") {
		t.Fatalf("expected creatable pass, got %+v", result)
	}
	result = CheckCreatable("reports", base)
	if !result.Passed || !strings.Contains(result.Detail, "read/write ok") {
		t.Fatalf("expected existing dir pass, got %+v", result)
	}
}

func TestCheckPlan(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "PLAN.md")
	testsupport.WriteFile(t, good, "# Plan\n\n- [ ] `cmd/main.go`\n- [x] `internal/x.go`\n")
	if result := CheckPlan(good); !result.Passed || !strings.Contains(result.Detail, "2 deliverables") {
		t.Fatalf("expected pass, got %+v", result)
	}

	empty := filepath.Join(dir, "EMPTY.md")
	testsupport.WriteFile(t, empty, "# Nothing here\n")
	if result := CheckPlan(empty); result.Passed {
		t.Fatalf("expected failure for plan without deliverables, got %+v", result)
	}

	if result := CheckPlan(filepath.Join(dir, "missing.md")); result.Passed {
		t.Fatal("expected failure for missing plan")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPlans("PLAN.md"))
	testsupport.WriteFile(t, cfg.Audit.Plans[0], "- `a.go`\n")

	results := RunAll(context.Background(), cfg)
	// workspace, triggers, state, reports, one plan
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}

	cfg.Audit.WriteReports = false
	if err := os.RemoveAll(cfg.Paths.TriggersDir); err != nil {
		t.Fatal(err)
	}
	results = RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected report check skipped, got %d results", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Triggers directory" {
		t.Fatalf("expected only the triggers check to fail, got %+v", failed)
	}
}

func TestCheckDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result, health := CheckDatabase(context.Background(), cfg)
	if !result.Passed || health != nil || !strings.Contains(result.Detail, "not created yet") {
		t.Fatalf("expected pass before creation, got %+v", result)
	}

	testsupport.MustOpenStore(t, cfg)
	result, health = CheckDatabase(context.Background(), cfg)
	if !result.Passed || health == nil || !health.IntegrityCheck {
		t.Fatalf("expected healthy database, got %+v %+v", result, health)
	}
}

func TestCheckDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	if result := CheckDaemon(cfg); !result.Passed || result.Detail != "not running" {
		t.Fatalf("expected not running, got %+v", result)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LockPath()), 0o755); err != nil {
		t.Fatal(err)
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("acquire lock: %v", err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })

	result := CheckDaemon(cfg)
	if !result.Passed || !strings.HasPrefix(result.Detail, "running") {
		t.Fatalf("expected running, got %+v", result)
	}
}
