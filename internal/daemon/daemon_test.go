package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reconcile/internal/config"
	"reconcile/internal/daemon"
	"reconcile/internal/logging"
	"reconcile/internal/testsupport"
	"reconcile/internal/trigger"
)

func testDaemon(t *testing.T) (*daemon.Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAgents("cursor-mm1"), testsupport.WithPlans("PLAN.md"))
	testsupport.WriteFile(t, cfg.Audit.Plans[0], "# Plan\n\n- [x] `main.go`\n- [ ] `later.go`\n")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WorkspaceRoot, "main.go"), "package main\n")

	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, cfg
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonStartStop(t *testing.T) {
	d, cfg := testDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if len(status.Plans) != 1 || status.Plans[0].LastAudit == nil || status.Plans[0].LastAudit.Percent != 50 {
		t.Fatalf("expected initial audit, got %+v", status.Plans)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, err := daemon.New(cfg, testsupport.MustOpenStore(t, cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonReauditsOnPlanChange(t *testing.T) {
	d, cfg := testDaemon(t)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first := d.Status(ctx).Plans[0].LastAudit.ID

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WorkspaceRoot, "later.go"), "package main\n")
	if err := os.WriteFile(cfg.Audit.Plans[0], []byte("# Plan\n\n- [x] `main.go`\n- [x] `later.go`\n"), 0o644); err != nil {
		t.Fatalf("rewrite plan: %v", err)
	}

	eventually(t, "re-audit after plan change", func() bool {
		last := d.Status(ctx).Plans[0].LastAudit
		return last != nil && last.ID != first && last.Percent == 100
	})
}

func TestDaemonRecordsTriggerEventsAndServesAPI(t *testing.T) {
	d, cfg := testDaemon(t)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	testsupport.WriteTrigger(t, cfg.Paths.TriggersDir, "cursor-mm1", trigger.StateInbox,
		trigger.Name{Timestamp: time.Now().UTC(), Kind: trigger.KindHandoff, Title: "ship", TaskID: "s1"}, `{}`)

	url := fmt.Sprintf("http://%s/api/events", d.APIAddress())
	eventually(t, "trigger event recorded", func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body struct {
			Events []struct {
				Kind  string `json:"kind"`
				Agent string `json:"agent"`
			} `json:"events"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		for _, ev := range body.Events {
			if ev.Kind == "trigger" && ev.Agent == "cursor-mm1" {
				return true
			}
		}
		return false
	})
}

func TestDaemonAlertsOnlyOnPhantomWork(t *testing.T) {
	cases := []struct {
		name      string
		plan      string
		wantAlert string
	}{
		{"outside root only", "# Plan\n\n- `../outside/secret.txt`\n", ""},
		{"claimed but missing", "# Plan\n\n- [x] `missing.go`\n", "phantom_work"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithPlans("PLAN.md"))
			testsupport.WriteFile(t, cfg.Audit.Plans[0], tc.plan)
			logPath := filepath.Join(t.TempDir(), "daemon.log")
			logger, err := logging.New(logging.Options{Format: "json", Level: "info", Outputs: []string{logPath}})
			if err != nil {
				t.Fatalf("logging.New: %v", err)
			}
			d, err := daemon.New(cfg, testsupport.MustOpenStore(t, cfg), logger)
			if err != nil {
				t.Fatalf("daemon.New: %v", err)
			}
			t.Cleanup(d.Stop)
			if err := d.Start(context.Background()); err != nil {
				t.Fatalf("Start failed: %v", err)
			}

			data, err := os.ReadFile(logPath)
			if err != nil {
				t.Fatalf("read log: %v", err)
			}
			var critical map[string]any
			for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
				var record map[string]any
				if json.Unmarshal([]byte(line), &record) == nil && record[logging.FieldEventType] == "audit_critical_findings" {
					critical = record
				}
			}
			if critical == nil {
				t.Fatalf("expected a critical findings record in:\n%s", data)
			}
			alert, _ := critical[logging.FieldAlert].(string)
			if alert != tc.wantAlert {
				t.Fatalf("alert = %q, want %q", alert, tc.wantAlert)
			}
		})
	}
}
