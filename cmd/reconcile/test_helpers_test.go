package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reconcile/internal/config"
	"reconcile/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	planPath   string
}

const cliPlan = `---
title: Launch checklist
---
# Launch

- [x] ` + "`app/main.go`" + ` ` + "`func main`" + `
- [x] ` + "`app/ghost.go`" + `
- [ ] ` + "`app/later.go`" + `
`

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithAgents("cursor-mm1", "claude-mm1"))
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))
	cfg.Logging.Level = "error"

	planPath := filepath.Join(cfg.Paths.WorkspaceRoot, "PLAN.md")
	testsupport.WriteFile(t, planPath, cliPlan)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WorkspaceRoot, "app", "main.go"), "package main\n\nfunc main() {}\n")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, planPath: planPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
