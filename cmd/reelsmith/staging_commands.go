package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/journal"
	"reelsmith/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage per-run staging directories",
	}
	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))
	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := staging.ListDirectories(cfg.Paths.StagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No staging directories found")
				return nil
			}

			fmt.Fprintf(out, "Staging directory: %s\n\n", cfg.Paths.StagingDir)
			var totalSize int64
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				totalSize += dir.Size
				rows = append(rows, []string{
					shortRunID(dir.RunID),
					humanize.Time(dir.ModTime),
					humanize.Bytes(uint64(dir.Size)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Modified", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			fmt.Fprintf(out, "\nTotal: %d directories, %s\n", len(dirs), humanize.Bytes(uint64(totalSize)))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove staging directories of finished runs",
		Long: `Remove staging directories whose run the journal records as completed
or failed. With --older-than, also remove any directory not modified within
that duration, whatever its run's status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(cfg *config.Config, j *journal.Journal) error {
				logger, err := ctx.logger(cfg)
				if err != nil {
					return err
				}
				records, err := j.ListRuns(cmd.Context(), 0)
				if err != nil {
					return err
				}
				finished := make(map[string]struct{})
				for _, rec := range records {
					if rec.Status.IsTerminal() {
						finished[rec.ID] = struct{}{}
					}
				}

				result := staging.CleanRuns(cmd.Context(), cfg.Paths.StagingDir, finished, logger)
				if olderThan > 0 {
					stale := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, olderThan, logger)
					result.Removed = append(result.Removed, stale.Removed...)
					result.Freed += stale.Freed
					result.Errors = append(result.Errors, stale.Errors...)
				}
				printStagingCleanResult(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Also remove directories not modified within this duration")
	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanResult) {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintln(out, "No staging directories to clean")
		return
	}
	fmt.Fprintf(out, "Removed %d %s, freed %s\n",
		len(result.Removed), pluralize(int64(len(result.Removed)), "directory", "directories"),
		humanize.Bytes(uint64(result.Freed)))
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
	}
}
