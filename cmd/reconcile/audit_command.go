package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reconcile/internal/api"
	"reconcile/internal/store"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var (
		root        string
		noSymbols   bool
		writeReport bool
		noStore     bool
		asJSON      bool
		failUnder   float64
	)

	cmd := &cobra.Command{
		Use:   "audit <plan.md>",
		Short: "Audit a plan's deliverables against the workspace",
		Long: "Resolve every deliverable the plan lists, classify it as present, missing, stub,\n" +
			"symbol_missing or outside_root, and report verified and claimed completion.\n" +
			"Claimed items that are not present are reported as phantom work.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if failUnder < 0 || failUnder > 100 {
				return fmt.Errorf("--fail-under must be between 0 and 100")
			}

			req := api.RunAuditRequest{
				Config:       cfg,
				PlanPath:     args[0],
				Root:         strings.TrimSpace(root),
				CheckSymbols: cfg.Audit.CheckSymbols && !noSymbols,
				WriteReport:  cfg.Audit.WriteReports,
				Logger:       ctx.logger(),
			}
			if cmd.Flags().Changed("write-report") {
				req.WriteReport = writeReport
			}

			var out api.RunAuditResult
			run := func(st *store.Store) error {
				req.Store = st
				out, err = api.RunAudit(cmd.Context(), req)
				return err
			}
			if noStore {
				err = run(nil)
			} else {
				err = ctx.withStore(run)
			}
			if err != nil {
				return err
			}

			view := api.FromResult(out.Result)
			if asJSON {
				if err := writeJSON(cmd, view); err != nil {
					return err
				}
			} else {
				renderAudit(cmd.OutOrStdout(), view, shouldColorize(cmd.OutOrStdout()))
			}

			if cmd.Flags().Changed("fail-under") && !out.Result.Meets(failUnder) {
				return exitError{
					code: 2,
					message: fmt.Sprintf("verified completion %s is below --fail-under %s",
						formatPercent(out.Result.Summary.Percent), formatPercent(failUnder)),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Workspace root (defaults to paths.workspace_root or the plan's front matter)")
	cmd.Flags().BoolVar(&noSymbols, "no-symbols", false, "Skip symbol checks inside deliverable files")
	cmd.Flags().BoolVar(&writeReport, "write-report", false, "Write a Markdown report to paths.report_dir (defaults to audit.write_reports)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not record the audit in the history database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().Float64Var(&failUnder, "fail-under", 0, "Exit with status 2 when verified completion is below this percentage")
	return cmd
}
