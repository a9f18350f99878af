package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	root := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile plans and agent trigger folders with the filesystem",
		Long: `reconcile compares what plan documents claim is done with what exists
in the workspace, and inventories the per-agent trigger folders.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddGroup(
		&cobra.Group{ID: "audit", Title: "Audit commands:"},
		&cobra.Group{ID: "triggers", Title: "Trigger commands:"},
		&cobra.Group{ID: "service", Title: "Service commands:"},
	)
	for group, cmds := range map[string][]*cobra.Command{
		"audit":    {newAuditCommand(ctx), newHistoryCommand(ctx), newShowCommand(ctx)},
		"triggers": {newTriggersCommand(ctx), newEventsCommand(ctx)},
		"service":  {newStatusCommand(ctx), newDaemonCommand(ctx), newConfigCommand(ctx)},
	} {
		for _, cmd := range cmds {
			cmd.GroupID = group
			root.AddCommand(cmd)
		}
	}
	return root
}
