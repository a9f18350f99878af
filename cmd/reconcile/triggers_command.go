package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reconcile/internal/api"
	"reconcile/internal/trigger"
)

func newTriggersCommand(ctx *commandContext) *cobra.Command {
	var (
		agent        string
		state        string
		findingsOnly bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Inventory agent trigger folders (read-only)",
		Long: "Count trigger files per agent and lifecycle folder, validate names and bodies,\n" +
			"and flag stale, duplicate, misrouted and malformed files. Files are never moved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := api.InventoryFilter{Agent: strings.TrimSpace(agent), WithEntries: !findingsOnly}
			if value := strings.TrimSpace(state); value != "" {
				parsed, ok := trigger.ParseState(value)
				if !ok {
					return fmt.Errorf("unknown state %q (expected inbox, processed, archive or failed)", value)
				}
				filter.State = parsed
			}

			inv, err := api.ScanTriggers(cmd.Context(), api.ScanTriggersRequest{
				Config:     cfg,
				ReadBodies: true,
				Logger:     ctx.logger(),
			})
			if err != nil {
				return err
			}
			view := api.FromInventory(inv, filter)
			if asJSON {
				return writeJSON(cmd, view)
			}
			renderInventory(cmd.OutOrStdout(), view, findingsOnly, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Only show entries and findings for this agent")
	cmd.Flags().StringVar(&state, "state", "", "Only show entries in this state (inbox, processed, archive, failed)")
	cmd.Flags().BoolVar(&findingsOnly, "findings", false, "Only show findings")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderInventory(w io.Writer, inv api.TriggerInventory, findingsOnly, color bool) {
	if !findingsOnly {
		for _, line := range renderSectionHeader("Trigger folders: "+inv.Root, color) {
			fmt.Fprintln(w, line)
		}
		if len(inv.Counts) == 0 {
			fmt.Fprintln(w, "No agent folders found")
		} else {
			fmt.Fprintln(w, renderTriggerCounts(inv.Counts, nil))
		}
		fmt.Fprintln(w)

		if len(inv.Entries) > 0 {
			rows := make([][]string, 0, len(inv.Entries))
			for _, e := range inv.Entries {
				name := e.Title
				if !e.Valid {
					name = "(unparsed) " + e.Path
				}
				rows = append(rows, []string{
					e.Agent,
					e.State,
					e.Kind,
					name,
					e.TaskID,
					e.Timestamp,
					e.Priority,
					strconv.FormatInt(e.Size, 10),
				})
			}
			fmt.Fprintln(w, renderTable([]string{"Agent", "State", "Kind", "Title", "Task", "Timestamp", "Priority", "Bytes"}, rows))
			fmt.Fprintln(w)
		}
	}
	renderFindings(w, inv.Findings, color)
}
