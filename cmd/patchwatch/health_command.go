package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"patchwatch/internal/ipc"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show catalog diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Health()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Catalog:            %s\n", resp.DBPath)
				fmt.Fprintf(stdout, "Schema version:     %d\n", resp.SchemaVersion)
				fmt.Fprintf(stdout, "Integrity check:    %s\n", yesNo(resp.IntegrityCheck))
				fmt.Fprintf(stdout, "Releases:           %d (%d active)\n", resp.Releases, resp.ActiveReleases)
				fmt.Fprintf(stdout, "Update records:     %d\n", resp.UpdateRecords)
				fmt.Fprintf(stdout, "Pending open:       %d\n", resp.PendingOpen)
				fmt.Fprintf(stdout, "Pending dismissed:  %d\n", resp.PendingDismissed)
				fmt.Fprintf(stdout, "Relations open:     %d\n", resp.RelationsOpen)
				if resp.Error != "" {
					fmt.Fprintf(stdout, "Error:              %s\n", resp.Error)
				}
				return nil
			})
		},
	}
}
