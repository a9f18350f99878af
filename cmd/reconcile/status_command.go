package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"reconcile/internal/config"
	"reconcile/internal/preflight"
	"reconcile/internal/store"
)

type statusReport struct {
	ConfigPath string                `json:"configPath"`
	Daemon     preflight.Result      `json:"daemon"`
	Database   preflight.Result      `json:"database"`
	Health     *store.DatabaseHealth `json:"health,omitempty"`
	Checks     []preflight.Result    `json:"checks"`
	Ready      bool                  `json:"ready"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, database health, and readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := buildStatusReport(cmd, cfg, ctx.source().path)
			if asJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				renderStatus(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
			}
			if !report.Ready {
				return exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func buildStatusReport(cmd *cobra.Command, cfg *config.Config, configPath string) statusReport {
	report := statusReport{
		ConfigPath: configPath,
		Daemon:     preflight.CheckDaemon(cfg),
		Checks:     preflight.RunAll(cmd.Context(), cfg),
	}
	report.Database, report.Health = preflight.CheckDatabase(cmd.Context(), cfg)
	report.Ready = report.Database.Passed && len(preflight.Failed(report.Checks)) == 0
	return report
}

func renderStatus(w io.Writer, report statusReport, color bool) {
	for _, line := range renderSectionHeader("Reconcile status", color) {
		fmt.Fprintln(w, line)
	}
	configPath := report.ConfigPath
	if configPath == "" {
		configPath = "(defaults)"
	}
	fmt.Fprintln(w, renderLabel("Config", configPath))
	fmt.Fprintln(w, renderLabel("Daemon", report.Daemon.Detail))
	if h := report.Health; h != nil {
		fmt.Fprintln(w, renderLabel("Database", h.DBPath))
		fmt.Fprintln(w, renderLabel("Schema version", h.SchemaVersion))
		fmt.Fprintln(w, renderLabel("Integrity check", yesNo(h.IntegrityCheck)))
		fmt.Fprintln(w, renderLabel("Audits recorded", fmt.Sprint(h.TotalAudits)))
		fmt.Fprintln(w, renderLabel("Events recorded", fmt.Sprint(h.TotalEvents)))
	} else {
		fmt.Fprintln(w, renderLabel("Database", report.Database.Detail))
	}
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(report.Checks)+1)
	for _, check := range append([]preflight.Result{report.Database}, report.Checks...) {
		state := colorize("ok", ansiGreen, color)
		if !check.Passed {
			state = colorize("fail", ansiRed, color)
		}
		rows = append(rows, []string{check.Name, state, check.Detail})
	}
	fmt.Fprintln(w, renderTable([]string{"Check", "State", "Detail"}, rows))
}
