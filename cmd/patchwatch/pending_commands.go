package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"patchwatch/internal/ipc"
)

func newPendingCommand(ctx *commandContext) *cobra.Command {
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "Review queued update detections",
	}

	pendingCmd.AddCommand(newPendingListCommand(ctx))
	pendingCmd.AddCommand(newPendingApproveCommand(ctx))
	pendingCmd.AddCommand(newPendingRejectCommand(ctx))

	return pendingCmd
}

func newPendingListCommand(ctx *commandContext) *cobra.Command {
	var releaseArg string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued detections awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			var releaseID int64
			if strings.TrimSpace(releaseArg) != "" {
				parsed, err := parseReleaseID(releaseArg)
				if err != nil {
					return err
				}
				releaseID = parsed
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PendingList(releaseID)
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Pending) == 0 {
					fmt.Fprintln(stdout, "No pending updates")
					return nil
				}

				rows := make([][]string, 0, len(resp.Pending))
				for _, pending := range resp.Pending {
					version := pending.Version
					if version == "" {
						version = "-"
					}
					build := pending.Build
					if build == "" {
						build = "-"
					}
					rows = append(rows, []string{
						pending.ID,
						strconv.FormatInt(pending.ReleaseID, 10),
						version,
						build,
						fmt.Sprintf("%.2f", pending.Confidence),
						pending.Method,
						formatTimestamp(pending.DateFound),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Release", "Version", "Build", "Confidence", "Method", "Found"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&releaseArg, "release", "", "Filter by release id")
	return cmd
}

func newPendingApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <release-id> <pending-id>",
		Short: "Apply a queued detection to its release",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			releaseID, err := parseReleaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Approve(releaseID, strings.TrimSpace(args[1]))
				if err != nil {
					return err
				}
				record := resp.Record
				detected := record.Version
				if detected == "" {
					detected = record.Build
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s to release %d (%s)\n", detected, record.ReleaseID, record.Significance)
				return nil
			})
		},
	}
}

func newPendingRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <release-id> <pending-id>",
		Short: "Dismiss a queued detection and suppress it permanently",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			releaseID, err := parseReleaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Reject(releaseID, strings.TrimSpace(args[1])); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Detection dismissed")
				return nil
			})
		},
	}
}
