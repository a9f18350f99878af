package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reconcile/internal/audit"
	"reconcile/internal/config"
	"reconcile/internal/inventory"
	"reconcile/internal/logging"
	"reconcile/internal/plan"
	"reconcile/internal/report"
	"reconcile/internal/store"
)

// ScanTriggersRequest configures a read-only trigger inventory.
type ScanTriggersRequest struct {
	Config     *config.Config
	ReadBodies bool
	Now        func() time.Time
	Logger     *slog.Logger
}

// ScanTriggers inventories the configured triggers directory.
func ScanTriggers(ctx context.Context, req ScanTriggersRequest) (*inventory.Inventory, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	return inventory.Scan(ctx, inventory.Options{
		Root:         cfg.Paths.TriggersDir,
		Agents:       cfg.Agents.Names,
		StaleAfter:   cfg.StaleAfter(),
		MaxBodyBytes: cfg.Triggers.MaxBodyBytes,
		ReadBodies:   req.ReadBodies,
		Now:          req.Now,
		Logger:       req.Logger,
	})
}

// RunAuditRequest configures one audit run.
type RunAuditRequest struct {
	Config   *config.Config
	Store    *store.Store
	PlanPath string
	// Root overrides paths.workspace_root; plan front matter still wins.
	Root         string
	CheckSymbols bool
	WriteReport  bool
	Now          func() time.Time
	Logger       *slog.Logger
}

// RunAuditResult is the outcome of RunAudit.
type RunAuditResult struct {
	Result *audit.Result
	// Pruned lists reports removed by retention.
	Pruned []string
}

// RunAudit parses the plan, inventories triggers, audits the workspace,
// persists the run when a store is supplied, and writes the report when
// requested. Inventory problems are recorded on the result; only plan, store,
// and report failures are returned as errors.
func RunAudit(ctx context.Context, req RunAuditRequest) (RunAuditResult, error) {
	cfg := req.Config
	if cfg == nil {
		return RunAuditResult{}, fmt.Errorf("configuration is required")
	}
	logger := req.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	planPath := strings.TrimSpace(req.PlanPath)
	if planPath == "" {
		return RunAuditResult{}, fmt.Errorf("plan path is required")
	}
	expanded, err := config.ExpandPath(planPath)
	if err != nil {
		return RunAuditResult{}, fmt.Errorf("resolve plan path: %w", err)
	}

	p, err := plan.Parse(expanded)
	if err != nil {
		return RunAuditResult{}, fmt.Errorf("parse plan: %w", err)
	}

	root := strings.TrimSpace(req.Root)
	if root == "" {
		root = cfg.Paths.WorkspaceRoot
	}

	auditReq := audit.Request{
		Plan:         p,
		Root:         root,
		CheckSymbols: req.CheckSymbols,
		Now:          req.Now,
		Logger:       logger,
	}
	inv, invErr := ScanTriggers(ctx, ScanTriggersRequest{Config: cfg, ReadBodies: true, Now: req.Now, Logger: logger})
	switch {
	case invErr == nil:
		auditReq.Inventory = inv
	case errors.Is(invErr, context.Canceled) || errors.Is(invErr, context.DeadlineExceeded):
		return RunAuditResult{}, invErr
	default:
		auditReq.InventoryErr = invErr
	}

	if req.Store != nil && auditReq.Inventory != nil {
		previous, err := req.Store.LatestSnapshot(ctx)
		switch {
		case err == nil:
			auditReq.Previous = previous
		case errors.Is(err, store.ErrNotFound):
		default:
			logging.WarnWithContext(logger, "previous trigger snapshot unavailable", "previous_snapshot_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "count drift not reported for this audit"),
			)
		}
	}

	res, err := audit.Run(ctx, auditReq)
	if err != nil {
		return RunAuditResult{}, err
	}
	out := RunAuditResult{Result: res}

	if req.Store != nil {
		if err := req.Store.SaveAudit(ctx, res); err != nil {
			return out, fmt.Errorf("save audit: %w", err)
		}
	}

	if req.WriteReport {
		path, err := report.Write(cfg.Paths.ReportDir, res)
		if err != nil {
			return out, fmt.Errorf("write report: %w", err)
		}
		res.ReportPath = path
		if req.Store != nil {
			if err := req.Store.SetReportPath(ctx, res.ID, path); err != nil {
				return out, fmt.Errorf("record report path: %w", err)
			}
		}
		now := time.Now()
		if req.Now != nil {
			now = req.Now()
		}
		out.Pruned = report.Prune(logger, cfg.Paths.ReportDir, cfg.Audit.ReportRetentionDays, now)
		logger.Info("audit report written",
			logging.String(logging.FieldAuditID, res.ID),
			logging.String("path", path),
		)
	}
	return out, nil
}
