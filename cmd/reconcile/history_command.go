package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reconcile/internal/api"
	"reconcile/internal/config"
	"reconcile/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		planPath string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded audits, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := strings.TrimSpace(planPath)
			if filter != "" {
				expanded, err := config.ExpandPath(filter)
				if err != nil {
					return fmt.Errorf("resolve plan path: %w", err)
				}
				filter = expanded
			}
			return ctx.withStore(func(st *store.Store) error {
				rows, err := st.ListAudits(cmd.Context(), filter, limit)
				if err != nil {
					return err
				}
				audits := api.FromAuditSummaries(rows)
				if asJSON {
					return writeJSON(cmd, api.AuditListResponse{Audits: audits})
				}
				out := cmd.OutOrStdout()
				if len(audits) == 0 {
					fmt.Fprintln(out, "No audits recorded")
					return nil
				}
				color := shouldColorize(out)
				tableRows := make([][]string, 0, len(audits))
				for _, a := range audits {
					title := a.PlanTitle
					if title == "" {
						title = a.PlanPath
					}
					tableRows = append(tableRows, []string{
						a.ID,
						a.FinishedAt,
						title,
						fmt.Sprintf("%d/%d", a.Verified, a.Total),
						colorize(formatPercent(a.Percent), percentColor(a.Percent), color && a.Total > 0),
						formatPercent(a.ClaimedPercent),
						strconv.Itoa(a.Findings),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Finished", "Plan", "Verified", "Percent", "Claimed", "Findings"}, tableRows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "Only list audits of this plan file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of audits to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <audit-id>",
		Short: "Show a recorded audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withStore(func(st *store.Store) error {
				res, err := st.GetAudit(cmd.Context(), id)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("audit %s not found", id)
				}
				if err != nil {
					return err
				}
				view := api.FromResult(res)
				if asJSON {
					return writeJSON(cmd, view)
				}
				renderAudit(cmd.OutOrStdout(), view, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
