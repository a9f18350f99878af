package preflight

import (
	"context"

	"reconcile/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the filesystem and plan checks for the given config.
// The report directory is only checked when reports are written.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Workspace root", cfg.Paths.WorkspaceRoot, AccessRead),
		CheckDirectoryAccess("Triggers directory", cfg.Paths.TriggersDir, AccessRead),
		CheckCreatable("State directory", cfg.Paths.StateDir),
	}
	if cfg.Audit.WriteReports {
		results = append(results, CheckCreatable("Report directory", cfg.Paths.ReportDir))
	}
	for _, path := range cfg.Audit.Plans {
		if ctx.Err() != nil {
			break
		}
		results = append(results, CheckPlan(path))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
