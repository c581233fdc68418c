package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"patchwatch/internal/ipc"
)

func newReleasesCommand(ctx *commandContext) *cobra.Command {
	releasesCmd := &cobra.Command{
		Use:   "releases",
		Short: "Manage tracked releases",
	}

	releasesCmd.AddCommand(newReleasesListCommand(ctx))
	releasesCmd.AddCommand(newReleasesAddCommand(ctx))
	releasesCmd.AddCommand(newReleasesRemoveCommand(ctx))
	releasesCmd.AddCommand(newReleasesPauseCommand(ctx))
	releasesCmd.AddCommand(newReleasesResumeCommand(ctx))
	releasesCmd.AddCommand(newReleasesHistoryCommand(ctx))

	return releasesCmd
}

func newReleasesListCommand(ctx *commandContext) *cobra.Command {
	var accountID string
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReleaseList(accountID, activeOnly)
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Releases) == 0 {
					fmt.Fprintln(stdout, "No tracked releases")
					return nil
				}

				rows := make([][]string, 0, len(resp.Releases))
				for _, release := range resp.Releases {
					version := release.CurrentVersion
					if version == "" {
						version = "-"
					}
					build := release.CurrentBuild
					if build == "" {
						build = "-"
					}
					lastChecked := "-"
					if release.LastChecked != nil {
						lastChecked = formatTimestamp(*release.LastChecked)
					}
					rows = append(rows, []string{
						strconv.FormatInt(release.ID, 10),
						release.AccountID,
						release.Title,
						version,
						build,
						yesNo(release.Active),
						lastChecked,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Account", "Title", "Version", "Build", "Active", "Last Checked"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Filter releases by account")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Show only active releases")
	return cmd
}

func newReleasesAddCommand(ctx *commandContext) *cobra.Command {
	var accountID string
	var sourceTag string
	var link string
	var cadenceMinutes int

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Track a new release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(args[0])
			if title == "" {
				return fmt.Errorf("title must not be empty")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReleaseAdd(ipc.ReleaseAddRequest{
					AccountID:      accountID,
					Title:          title,
					SourceTag:      sourceTag,
					Link:           link,
					CadenceMinutes: cadenceMinutes,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tracking %q (id %d)\n", resp.Release.Title, resp.Release.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account that owns the release")
	cmd.Flags().StringVar(&sourceTag, "source", "", "Listing source tag to poll")
	cmd.Flags().StringVar(&link, "link", "", "Canonical link for the release")
	cmd.Flags().IntVar(&cadenceMinutes, "cadence", 0, "Check cadence in minutes (0 uses the configured default)")
	if err := cmd.MarkFlagRequired("account"); err != nil {
		panic(err)
	}
	return cmd
}

func newReleasesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <release-id>",
		Short: "Stop tracking a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			releaseID, err := parseReleaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ReleaseRemove(releaseID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed release %d\n", releaseID)
				return nil
			})
		},
	}
}

func newReleasesPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <release-id>",
		Short: "Pause update checks for a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setReleaseActive(cmd, ctx, args[0], false)
		},
	}
}

func newReleasesResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <release-id>",
		Short: "Resume update checks for a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setReleaseActive(cmd, ctx, args[0], true)
		},
	}
}

func setReleaseActive(cmd *cobra.Command, ctx *commandContext, arg string, active bool) error {
	releaseID, err := parseReleaseID(arg)
	if err != nil {
		return err
	}
	return ctx.withClient(func(client *ipc.Client) error {
		if _, err := client.ReleasePause(releaseID, active); err != nil {
			return err
		}
		state := "paused"
		if active {
			state = "resumed"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Release %d %s\n", releaseID, state)
		return nil
	})
}

func newReleasesHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <release-id>",
		Short: "Show the applied update history for a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			releaseID, err := parseReleaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(releaseID)
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Records) == 0 {
					fmt.Fprintln(stdout, "No update history")
					return nil
				}

				rows := make([][]string, 0, len(resp.Records))
				for _, record := range resp.Records {
					version := record.Version
					if version == "" {
						version = "-"
					}
					build := record.Build
					if build == "" {
						build = "-"
					}
					previous := record.PreviousVersion
					if previous == "" {
						previous = "-"
					}
					rows = append(rows, []string{
						formatTimestamp(record.DateFound),
						version,
						build,
						record.Significance,
						previous,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Found", "Version", "Build", "Significance", "Previous"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func parseReleaseID(arg string) (int64, error) {
	releaseID, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || releaseID <= 0 {
		return 0, fmt.Errorf("invalid release id %q", arg)
	}
	return releaseID, nil
}
