package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"patchwatch/internal/ipc"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <account>",
		Short: "Recompute the check schedule for one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.RefreshSchedule(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule refreshed for %s\n", args[0])
				return nil
			})
		},
	}
}
