package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"patchwatch/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and schedule status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				fmt.Fprintf(stdout, "Running:            %s\n", colorizeYesNo(resp.Running, colorize))
				if resp.PID > 0 {
					fmt.Fprintf(stdout, "PID:                %d\n", resp.PID)
				}
				fmt.Fprintf(stdout, "Scheduled accounts: %d\n", resp.ScheduledAccounts)
				fmt.Fprintf(stdout, "Catalog:            %s\n", resp.CatalogPath)
				fmt.Fprintf(stdout, "Lock file:          %s\n", resp.LockPath)

				if len(resp.NextChecks) == 0 {
					fmt.Fprintln(stdout, "No checks scheduled")
					return nil
				}

				rows := make([][]string, 0, len(resp.NextChecks))
				for _, entry := range resp.NextChecks {
					rows = append(rows, []string{
						entry.AccountID,
						formatTimestamp(entry.NextCheck),
						formatTimestamp(entry.LastCheck),
						entry.Cadence,
					})
				}
				fmt.Fprintln(stdout)
				fmt.Fprintln(stdout, renderTable(
					[]string{"Account", "Next Check", "Last Check", "Cadence"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
