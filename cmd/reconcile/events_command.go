package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reconcile/internal/api"
	"reconcile/internal/store"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List file events recorded by the daemon, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				events, err := st.RecentEvents(cmd.Context(), limit)
				if err != nil {
					return err
				}
				view := api.FromEvents(events)
				if asJSON {
					return writeJSON(cmd, api.EventListResponse{Events: view})
				}
				out := cmd.OutOrStdout()
				if len(view) == 0 {
					fmt.Fprintln(out, "No events recorded")
					return nil
				}
				rows := make([][]string, 0, len(view))
				for _, ev := range view {
					rows = append(rows, []string{
						strconv.FormatInt(ev.ID, 10),
						ev.ObservedAt,
						ev.Kind,
						ev.Op,
						ev.Agent,
						ev.State,
						ev.Path,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Observed", "Kind", "Op", "Agent", "State", "Path"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
