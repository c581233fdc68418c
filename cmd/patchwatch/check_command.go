package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"patchwatch/internal/ipc"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <account>",
		Short: "Run an immediate update check for one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CheckNow(args[0])
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Checked releases: %d\n", resp.Checked)
				fmt.Fprintf(stdout, "Updates found:    %d\n", resp.UpdatesFound)
				fmt.Fprintf(stdout, "Sequels found:    %d\n", resp.SequelsFound)
				fmt.Fprintf(stdout, "Failed sources:   %d\n", resp.Failed)
				return nil
			})
		},
	}
}
