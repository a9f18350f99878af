package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"reconcile/internal/logging"
	"reconcile/internal/testsupport"
	"reconcile/internal/trigger"
	"reconcile/internal/watch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatcher(t *testing.T, opts watch.Options) *watch.Watcher {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	opts.Logger = logging.NewNop()
	w, err := watch.New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func waitFor(t *testing.T, w *watch.Watcher, match func(watch.Event) bool) watch.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				t.Fatal("events channel closed")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func sampleName(title string) trigger.Name {
	return trigger.Name{Timestamp: time.Now().UTC(), Kind: trigger.KindHandoff, Title: title, TaskID: "w1"}
}

func TestTriggerCreateIsReported(t *testing.T) {
	root := t.TempDir()
	testsupport.MakeAgentDirs(t, root, "cursor-mm1")
	w := startWatcher(t, watch.Options{TriggersDir: root})

	path := testsupport.WriteTrigger(t, root, "cursor-mm1", trigger.StateInbox, sampleName("hello"), `{}`)

	ev := waitFor(t, w, func(ev watch.Event) bool { return ev.Kind == watch.KindTrigger })
	if ev.Path != path || ev.Agent != "cursor-mm1" || ev.State != trigger.StateInbox {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Op != watch.OpCreate {
		t.Fatalf("expected create op after coalescing, got %q", ev.Op)
	}
}

func TestRepeatedWritesAreDebounced(t *testing.T) {
	root := t.TempDir()
	testsupport.MakeAgentDirs(t, root, "claude-mm1")
	w := startWatcher(t, watch.Options{TriggersDir: root, Debounce: 100 * time.Millisecond})

	name := sampleName("burst")
	for i := 0; i < 3; i++ {
		testsupport.WriteTrigger(t, root, "claude-mm1", trigger.StateProcessed, name, `{"n":1}`)
	}
	waitFor(t, w, func(ev watch.Event) bool { return ev.Kind == watch.KindTrigger })

	select {
	case ev := <-w.Events():
		t.Fatalf("expected a single debounced event, got extra %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNewAgentFolderIsWatched(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, watch.Options{TriggersDir: root})

	testsupport.MakeAgentDirs(t, root, "codex")
	path := testsupport.WriteTrigger(t, root, "codex", trigger.StateInbox, sampleName("late"), `{}`)

	ev := waitFor(t, w, func(ev watch.Event) bool { return ev.Path == path })
	if ev.Agent != "codex" || ev.State != trigger.StateInbox {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestPlanChangesAreFiltered(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "PLAN.md")
	testsupport.WriteFile(t, planPath, "# Plan\n")
	w := startWatcher(t, watch.Options{Plans: []string{planPath}})

	testsupport.WriteFile(t, filepath.Join(dir, "NOTES.md"), "ignored\n")
	if err := os.WriteFile(planPath, []byte("# Plan\n- [x] `a.go`\n"), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	ev := waitFor(t, w, func(watch.Event) bool { return true })
	if ev.Kind != watch.KindPlan || ev.Path != planPath || ev.Op != watch.OpWrite {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestIgnoresNonTriggerFiles(t *testing.T) {
	root := t.TempDir()
	testsupport.MakeAgentDirs(t, root, "cursor-mm1")
	w := startWatcher(t, watch.Options{TriggersDir: root})

	testsupport.WriteFile(t, filepath.Join(root, "cursor-mm1", trigger.StateInbox.Dir(), ".draft.json.swp"), "x")
	testsupport.WriteFile(t, filepath.Join(root, "README.md"), "x")

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMissingRootDoesNotFailStart(t *testing.T) {
	w := startWatcher(t, watch.Options{TriggersDir: filepath.Join(t.TempDir(), "absent")})
	w.Stop()
	if _, ok := <-w.Events(); ok {
		t.Fatal("expected events channel closed after Stop")
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected restart to fail")
	}
}

func TestNewRequiresSomethingToWatch(t *testing.T) {
	if _, err := watch.New(watch.Options{}); err == nil {
		t.Fatal("expected error for empty options")
	}
}
