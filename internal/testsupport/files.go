package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"reconcile/internal/trigger"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path string, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// MakeAgentDirs creates every lifecycle folder for an agent.
func MakeAgentDirs(t testing.TB, root, agent string) {
	t.Helper()

	for _, state := range trigger.States() {
		dir := filepath.Join(root, agent, state.Dir())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
}

// WriteTrigger writes a trigger file with the canonical name into the
// agent's state folder and returns its path.
func WriteTrigger(t testing.TB, root, agent string, state trigger.State, name trigger.Name, body string) string {
	t.Helper()

	path := filepath.Join(root, agent, state.Dir(), name.String())
	WriteFile(t, path, body)
	return path
}

// Touch sets both access and modification time on path.
func Touch(t testing.TB, path string, when time.Time) {
	t.Helper()

	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}
