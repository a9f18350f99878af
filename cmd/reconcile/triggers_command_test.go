package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"reconcile/internal/api"
	"reconcile/internal/store"
	"reconcile/internal/testsupport"
	"reconcile/internal/trigger"
)

func TestTriggersCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	root := env.cfg.Paths.TriggersDir
	testsupport.WriteTrigger(t, root, "cursor-mm1", trigger.StateInbox,
		trigger.Name{Timestamp: time.Now().UTC(), Kind: trigger.KindHandoff, Title: "dedup", TaskID: "d1"},
		`{"target_agent":"cursor-mm1","priority":"high"}`)
	testsupport.WriteTrigger(t, root, "claude-mm1", trigger.StateProcessed,
		trigger.Name{Timestamp: time.Now().UTC(), Kind: trigger.KindReturn, Title: "done", TaskID: "d2"}, `not json`)

	out, _, err := runCLI(t, []string{"triggers"}, env.configPath)
	if err != nil {
		t.Fatalf("triggers: %v", err)
	}
	requireContains(t, out, "dedup")
	requireContains(t, out, "high")
	requireContains(t, out, "invalid_body")

	out, _, err = runCLI(t, []string{"triggers", "--agent", "Cursor MM1", "--state", "inbox", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("triggers --json: %v", err)
	}
	var inv api.TriggerInventory
	if err := json.Unmarshal([]byte(out), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(inv.Entries) != 1 || inv.Entries[0].TargetAgent != "cursor-mm1" {
		t.Fatalf("unexpected entries %+v", inv.Entries)
	}
	if inv.Counts["claude-mm1"]["processed"] != 1 {
		t.Fatalf("counts should not be filtered: %+v", inv.Counts)
	}
	for _, f := range inv.Findings {
		if f.Agent == "claude-mm1" {
			t.Fatalf("findings should be filtered by agent, got %+v", f)
		}
	}

	out, _, err = runCLI(t, []string{"triggers", "--findings"}, env.configPath)
	if err != nil {
		t.Fatalf("triggers --findings: %v", err)
	}
	requireContains(t, out, "invalid_body")

	if _, _, err := runCLI(t, []string{"triggers", "--state", "done"}, env.configPath); err == nil {
		t.Fatal("expected unknown state error")
	}
}

func TestEventsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"events"}, env.configPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, out, "No events recorded")

	st := testsupport.MustOpenStore(t, env.cfg)
	if _, err := st.RecordEvent(context.Background(), store.Event{
		Kind: "trigger", Op: "create", Path: "/t/cursor-mm1/01_inbox/x.json", Agent: "cursor-mm1", State: "inbox",
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	out, _, err = runCLI(t, []string{"events", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("events --json: %v", err)
	}
	var resp api.EventListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Agent != "cursor-mm1" {
		t.Fatalf("unexpected events %+v", resp.Events)
	}
}
