package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reconcile/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The workspace and triggers directories are created; the state and report
// directories are left for the code under test to create.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceRoot = filepath.Join(base, "workspace")
	cfgVal.Paths.TriggersDir = filepath.Join(base, "triggers")
	cfgVal.Paths.ReportDir = filepath.Join(base, "reports")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Daemon.DebounceMillis = 20

	for _, dir := range []string{cfgVal.Paths.WorkspaceRoot, cfgVal.Paths.TriggersDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAgents creates lifecycle folders for each agent and lists them in the config.
func WithAgents(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Agents.Names = append(b.cfg.Agents.Names, names...)
		for _, name := range names {
			MakeAgentDirs(b.t, b.cfg.Paths.TriggersDir, name)
		}
	}
}

// WithPlans registers plan paths (relative to the workspace) for the daemon.
func WithPlans(paths ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, p := range paths {
			b.cfg.Audit.Plans = append(b.cfg.Audit.Plans, filepath.Join(b.cfg.Paths.WorkspaceRoot, p))
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
