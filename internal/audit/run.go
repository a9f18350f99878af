package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"reconcile/internal/inventory"
	"reconcile/internal/logging"
	"reconcile/internal/plan"
)

// Request describes one audit run.
type Request struct {
	Plan         *plan.Plan
	Root         string
	CheckSymbols bool
	// Inventory, when set, folds trigger findings into the result.
	Inventory *inventory.Inventory
	// Previous is the last persisted trigger snapshot; count changes against
	// it become count_drift findings.
	Previous *inventory.Snapshot
	// InventoryErr records a failed scan so it is reported instead of
	// silently dropped.
	InventoryErr error
	Now          func() time.Time
	Logger       *slog.Logger
}

// Run audits the plan against the workspace.
func Run(ctx context.Context, req Request) (*Result, error) {
	if req.Plan == nil {
		return nil, errors.New("audit requires a plan")
	}
	if strings.TrimSpace(req.Root) == "" {
		return nil, errors.New("audit requires a workspace root")
	}
	now := time.Now
	if req.Now != nil {
		now = req.Now
	}

	root, err := filepath.Abs(req.Plan.ResolveRoot(req.Root))
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	r := &Result{
		ID:        uuid.NewString(),
		PlanPath:  req.Plan.Path,
		PlanTitle: req.Plan.Title,
		Root:      root,
		StartedAt: now().UTC(),
	}
	logger := logging.NewComponentLogger(req.Logger, "audit").With(
		logging.String(logging.FieldAuditID, r.ID),
		logging.String(logging.FieldPlan, req.Plan.Path),
	)

	c := newChecker(root, req.CheckSymbols)
	r.Checks = make([]Check, 0, len(req.Plan.Deliverables))
	for _, d := range req.Plan.Deliverables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.Checks = append(r.Checks, c.check(d))
	}
	r.Summary = Summarize(r.Checks)
	r.Findings = checkFindings(r.Checks)

	switch {
	case req.Inventory != nil:
		r.Inventory = req.Inventory
		snap := req.Inventory.Snapshot()
		r.Triggers = &snap
		r.Findings = append(r.Findings, inventoryFindings(req.Inventory)...)
		if req.Previous != nil {
			r.CountDrift = inventory.CompareSnapshots(*req.Previous, snap)
			r.Findings = append(r.Findings, driftFindings(r.CountDrift)...)
		}
	case req.InventoryErr != nil:
		r.addError("trigger inventory: %v", req.InventoryErr)
		logging.WarnWithContext(logger, "trigger inventory unavailable", "audit_inventory_unavailable",
			logging.Error(req.InventoryErr),
			logging.String(logging.FieldImpact, "trigger findings omitted from this audit"),
			logging.String(logging.FieldErrorHint, "check paths.triggers_dir"),
		)
	}

	sortFindings(r.Findings)
	r.FinishedAt = now().UTC()

	logger.Info("audit complete",
		logging.String("title", r.PlanTitle),
		logging.Int("deliverables", r.Summary.Total),
		logging.Float64("percent", r.Summary.Percent),
		logging.Float64("claimed_percent", r.Summary.ClaimedPercent),
		logging.Int("findings", len(r.Findings)),
	)
	return r, nil
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func checkFindings(checks []Check) []Finding {
	var findings []Finding
	for _, c := range checks {
		d := c.Deliverable
		subject := d.Path
		if d.Symbol != "" {
			subject = d.Path + " (" + d.Symbol + ")"
		}
		if d.Claimed() && c.Status != StatusPresent {
			findings = append(findings, Finding{
				Kind:     FindingPhantom,
				Severity: SeverityCritical,
				Path:     d.Path,
				Detail:   fmt.Sprintf("line %d claims %s complete but it is %s", d.Line, subject, c.Status),
			})
		}
		if d.Claim == plan.ClaimUnchecked && c.Status == StatusPresent {
			findings = append(findings, Finding{
				Kind:     FindingUnclaimed,
				Severity: SeverityInfo,
				Path:     d.Path,
				Detail:   fmt.Sprintf("line %d: %s exists but is not checked off", d.Line, subject),
			})
		}
		switch c.Status {
		case StatusStub:
			findings = append(findings, Finding{
				Kind:     FindingStub,
				Severity: SeverityWarning,
				Path:     d.Path,
				Detail:   c.Detail,
			})
		case StatusSymbolMissing:
			findings = append(findings, Finding{
				Kind:     FindingSymbolMissing,
				Severity: SeverityWarning,
				Path:     d.Path,
				Detail:   c.Detail,
			})
		case StatusOutsideRoot:
			findings = append(findings, Finding{
				Kind:     FindingOutsideRoot,
				Severity: SeverityCritical,
				Path:     d.Path,
				Detail:   c.Detail,
			})
		}
	}
	return findings
}

func inventorySeverity(kind inventory.FindingKind) Severity {
	if kind == inventory.FindingUnknownDir {
		return SeverityInfo
	}
	return SeverityWarning
}

func inventoryFindings(inv *inventory.Inventory) []Finding {
	findings := make([]Finding, 0, len(inv.Findings))
	for _, f := range inv.Findings {
		findings = append(findings, Finding{
			Kind:     FindingKind(f.Kind),
			Severity: inventorySeverity(f.Kind),
			Path:     f.Path,
			Agent:    f.Agent,
			Detail:   f.Detail,
		})
	}
	return findings
}

// driftFindings reports every count change. Files only ever move between
// lifecycle folders, so an agent whose total shrank lost files outright.
func driftFindings(changes []inventory.CountChange) []Finding {
	findings := make([]Finding, 0, len(changes))
	net := map[string]int{}
	var agents []string
	for _, c := range changes {
		if _, ok := net[c.Agent]; !ok {
			agents = append(agents, c.Agent)
		}
		net[c.Agent] += c.Delta()
		findings = append(findings, Finding{
			Kind:     FindingCountDrift,
			Severity: SeverityInfo,
			Agent:    c.Agent,
			Detail:   fmt.Sprintf("%s count changed %d -> %d (%+d)", c.State, c.Before, c.After, c.Delta()),
		})
	}
	for _, agent := range agents {
		if net[agent] >= 0 {
			continue
		}
		findings = append(findings, Finding{
			Kind:     FindingCountDrift,
			Severity: SeverityWarning,
			Agent:    agent,
			Detail:   fmt.Sprintf("%d trigger file(s) disappeared since the previous audit", -net[agent]),
		})
	}
	return findings
}

func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Agent != b.Agent {
			return a.Agent < b.Agent
		}
		return a.Path < b.Path
	})
}
