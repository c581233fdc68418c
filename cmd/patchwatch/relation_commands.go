package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"patchwatch/internal/ipc"
)

func newRelationsCommand(ctx *commandContext) *cobra.Command {
	relationsCmd := &cobra.Command{
		Use:   "relations",
		Short: "Review suspected sequels, editions, and DLC",
	}

	relationsCmd.AddCommand(newRelationsListCommand(ctx))
	relationsCmd.AddCommand(newRelationsResolveCommand(ctx))

	return relationsCmd
}

func newRelationsListCommand(ctx *commandContext) *cobra.Command {
	var releaseArg string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open relation candidates",
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
				resp, err := client.RelationList(releaseID)
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Candidates) == 0 {
					fmt.Fprintln(stdout, "No relation candidates")
					return nil
				}

				rows := make([][]string, 0, len(resp.Candidates))
				for _, candidate := range resp.Candidates {
					rows = append(rows, []string{
						candidate.ID,
						strconv.FormatInt(candidate.ReleaseID, 10),
						candidate.CandidateTitle,
						candidate.Kind,
						fmt.Sprintf("%.2f", candidate.Similarity),
						formatTimestamp(candidate.CreatedAt),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Release", "Candidate", "Kind", "Similarity", "Found"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&releaseArg, "release", "", "Filter by release id")
	return cmd
}

func newRelationsResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <candidate-id> <track_same|track_separate|dismiss>",
		Short: "Resolve a relation candidate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ResolveRelation(strings.TrimSpace(args[0]), strings.TrimSpace(args[1])); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Relation resolved")
				return nil
			})
		},
	}
}
