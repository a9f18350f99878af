package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reconcile/internal/audit"
	"reconcile/internal/plan"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

const auditColumns = "id, plan_path, plan_title, root, started_at, finished_at, total, verified, claimed, percent, claimed_percent, drift, findings_count, report_path"

// SaveAudit persists a result with its checks, findings, and trigger snapshot
// in one transaction. Saving an existing id replaces it.
func (s *Store) SaveAudit(ctx context.Context, res *audit.Result) error {
	if res == nil || res.ID == "" {
		return errors.New("save audit: result without id")
	}
	statusCounts, err := marshalJSON(res.Summary.Counts)
	if err != nil {
		return fmt.Errorf("encode status counts: %w", err)
	}
	driftJSON, err := marshalJSON(res.CountDrift)
	if err != nil {
		return fmt.Errorf("encode count drift: %w", err)
	}
	errorsJSON, err := marshalJSON(res.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM audits WHERE id = ?`, res.ID); err != nil {
			return fmt.Errorf("replace audit: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audits (
                id, plan_path, plan_title, root, started_at, finished_at,
                total, verified, claimed, percent, claimed_percent, drift, empty,
                status_counts_json, count_drift_json, errors_json, findings_count, report_path
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID,
			res.PlanPath,
			nullableString(res.PlanTitle),
			res.Root,
			formatTime(res.StartedAt),
			formatTime(res.FinishedAt),
			res.Summary.Total,
			res.Summary.Verified,
			res.Summary.Claimed,
			res.Summary.Percent,
			res.Summary.ClaimedPercent,
			res.Summary.Drift,
			boolToInt(res.Summary.Empty),
			statusCounts,
			driftJSON,
			errorsJSON,
			len(res.Findings),
			nullableString(res.ReportPath),
		); err != nil {
			return fmt.Errorf("insert audit: %w", err)
		}

		for i, c := range res.Checks {
			d := c.Deliverable
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO audit_checks (
                    audit_id, position, line, section, item_text, path, symbol, claim, status, resolved_path, detail
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				res.ID, i, d.Line, nullableString(d.Section), nullableString(d.Text), d.Path,
				nullableString(d.Symbol), string(d.Claim), string(c.Status),
				nullableString(c.ResolvedPath), nullableString(c.Detail),
			); err != nil {
				return fmt.Errorf("insert check: %w", err)
			}
		}

		for i, f := range res.Findings {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO audit_findings (audit_id, position, kind, severity, agent, path, detail)
                 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				res.ID, i, string(f.Kind), string(f.Severity),
				nullableString(f.Agent), nullableString(f.Path), f.Detail,
			); err != nil {
				return fmt.Errorf("insert finding: %w", err)
			}
		}

		if res.Triggers != nil {
			if _, err := insertSnapshot(ctx, tx, res.ID, *res.Triggers); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save audit %s: %w", res.ID, err)
	}
	return nil
}

// SetReportPath records where the Markdown report for an audit was written.
func (s *Store) SetReportPath(ctx context.Context, id, path string) error {
	res, err := s.execWithRetry(ctx, `UPDATE audits SET report_path = ? WHERE id = ?`, nullableString(path), id)
	if err != nil {
		return fmt.Errorf("set report path: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("audit %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetAudit reassembles a stored audit. The inventory itself is not stored;
// Triggers carries the snapshot taken with the audit.
func (s *Store) GetAudit(ctx context.Context, id string) (*audit.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+`, empty, status_counts_json, count_drift_json, errors_json FROM audits WHERE id = ?`, id)

	var (
		summary      AuditSummary
		empty        int
		statusCounts sql.NullString
		driftJSON    sql.NullString
		errorsJSON   sql.NullString
	)
	if err := scanAuditSummary(row, &summary, &empty, &statusCounts, &driftJSON, &errorsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get audit: %w", err)
	}

	res := &audit.Result{
		ID:         summary.ID,
		PlanPath:   summary.PlanPath,
		PlanTitle:  summary.PlanTitle,
		Root:       summary.Root,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		ReportPath: summary.ReportPath,
		Summary: audit.Summary{
			Total:          summary.Total,
			Verified:       summary.Verified,
			Claimed:        summary.Claimed,
			Percent:        summary.Percent,
			ClaimedPercent: summary.ClaimedPercent,
			Drift:          summary.Drift,
			Empty:          empty != 0,
			Counts:         map[audit.Status]int{},
		},
	}
	if err := unmarshalJSON(statusCounts, &res.Summary.Counts); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}
	if err := unmarshalJSON(driftJSON, &res.CountDrift); err != nil {
		return nil, fmt.Errorf("decode count drift: %w", err)
	}
	if err := unmarshalJSON(errorsJSON, &res.Errors); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}

	checks, err := s.auditChecks(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Checks = checks
	findings, err := s.auditFindings(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Findings = findings

	snap, err := s.snapshotForAudit(ctx, id)
	switch {
	case err == nil:
		res.Triggers = snap
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return res, nil
}

func (s *Store) auditChecks(ctx context.Context, id string) ([]audit.Check, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line, section, item_text, path, symbol, claim, status, resolved_path, detail
         FROM audit_checks WHERE audit_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var checks []audit.Check
	for rows.Next() {
		var (
			c                                       audit.Check
			section, text, symbol, resolved, detail sql.NullString
			claim, status                           string
		)
		if err := rows.Scan(&c.Deliverable.Line, &section, &text, &c.Deliverable.Path, &symbol,
			&claim, &status, &resolved, &detail); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		c.Deliverable.Section = section.String
		c.Deliverable.Text = text.String
		c.Deliverable.Symbol = symbol.String
		c.Deliverable.Claim = plan.Claim(claim)
		c.Status = audit.Status(status)
		c.ResolvedPath = resolved.String
		c.Detail = detail.String
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (s *Store) auditFindings(ctx context.Context, id string) ([]audit.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, severity, agent, path, detail FROM audit_findings WHERE audit_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []audit.Finding
	for rows.Next() {
		var (
			kind, severity      string
			agent, path, detail sql.NullString
		)
		if err := rows.Scan(&kind, &severity, &agent, &path, &detail); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		findings = append(findings, audit.Finding{
			Kind:     audit.FindingKind(kind),
			Severity: audit.Severity(severity),
			Agent:    agent.String,
			Path:     path.String,
			Detail:   detail.String,
		})
	}
	return findings, rows.Err()
}

// ListAudits returns the newest audits first, optionally filtered by plan path.
func (s *Store) ListAudits(ctx context.Context, planPath string, limit int) ([]AuditSummary, error) {
	limit = clampLimit(limit, defaultListLimit, maxListLimit)
	var (
		rows *sql.Rows
		err  error
	)
	if planPath == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+auditColumns+` FROM audits ORDER BY finished_at DESC, id LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+auditColumns+` FROM audits WHERE plan_path = ? ORDER BY finished_at DESC, id LIMIT ?`, planPath, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var out []AuditSummary
	for rows.Next() {
		var summary AuditSummary
		if err := scanAuditSummary(rows, &summary); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// LatestAudit returns the newest audit for planPath, or ErrNotFound.
func (s *Store) LatestAudit(ctx context.Context, planPath string) (*AuditSummary, error) {
	audits, err := s.ListAudits(ctx, planPath, 1)
	if err != nil {
		return nil, err
	}
	if len(audits) == 0 {
		return nil, fmt.Errorf("latest audit for %s: %w", planPath, ErrNotFound)
	}
	return &audits[0], nil
}

// DeleteAuditsBefore removes audits that finished before cutoff.
func (s *Store) DeleteAuditsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM audits WHERE finished_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete audits: %w", err)
	}
	return res.RowsAffected()
}

func scanAuditSummary(scanner interface{ Scan(dest ...any) error }, summary *AuditSummary, extra ...any) error {
	var (
		title, reportPath     sql.NullString
		startedRaw, finishRaw string
	)
	dest := []any{
		&summary.ID, &summary.PlanPath, &title, &summary.Root, &startedRaw, &finishRaw,
		&summary.Total, &summary.Verified, &summary.Claimed, &summary.Percent,
		&summary.ClaimedPercent, &summary.Drift, &summary.Findings, &reportPath,
	}
	dest = append(dest, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return err
	}
	summary.PlanTitle = title.String
	summary.ReportPath = reportPath.String
	summary.StartedAt = parseTime(startedRaw)
	summary.FinishedAt = parseTime(finishRaw)
	return nil
}
