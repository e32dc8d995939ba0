package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/journal"
	"reelsmith/internal/logs"
	"reelsmith/internal/production"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:     "runs",
		Aliases: []string{"history"},
		Short:   "Inspect the production journal",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	runsCmd.AddCommand(newRunsStatsCommand(ctx))
	runsCmd.AddCommand(newRunsLogCommand(ctx))
	return runsCmd
}

func newRunsLogCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var raw bool

	cmd := &cobra.Command{
		Use:   "log <run-id>",
		Short: "Print a production's own log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(cfg *config.Config, j *journal.Journal) error {
				runID := args[0]
				if rec, err := j.FindRun(cmd.Context(), runID); err != nil {
					return err
				} else if rec != nil {
					runID = rec.ID
				}
				path, err := logs.Find(filepath.Join(cfg.Paths.LogDir, "runs"), runID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				opts := logs.TailOptions{Offset: -1, Limit: lines}
				if lines == 0 {
					opts = logs.TailOptions{Offset: 0}
				}
				for {
					result, err := logs.Tail(cmd.Context(), path, opts)
					if err != nil {
						if errors.Is(err, context.Canceled) {
							return nil
						}
						return err
					}
					for _, line := range result.Lines {
						if !raw {
							line = logs.Format(line)
						}
						fmt.Fprintln(out, line)
					}
					if !follow {
						return nil
					}
					opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: 2 * time.Second}
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON records unchanged")
	return cmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent productions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(_ *config.Config, j *journal.Journal) error {
				records, err := j.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRunTable(records, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}

func renderRunTable(records []journal.RunRecord, now time.Time) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			shortRunID(rec.ID),
			string(rec.Status),
			runLabel(rec),
			formatRunProgress(rec),
			formatSize(rec.OutputBytes),
			humanize.RelTime(rec.CreatedAt, now, "ago", "from now"),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Title", "Progress", "Size", "Started"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one production with its stage timings and scenes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(_ *config.Config, j *journal.Journal) error {
				rec, err := j.FindRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("run %q not found", args[0])
				}
				transitions, err := j.Transitions(cmd.Context(), rec.ID)
				if err != nil {
					return err
				}
				scenes, err := j.Assets(cmd.Context(), rec.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, struct {
						Run         *journal.RunRecord   `json:"run"`
						Transitions []journal.Transition `json:"transitions"`
						Scenes      []journal.SceneAsset `json:"scenes"`
					}{rec, transitions, scenes})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRunDetail(*rec, transitions, scenes))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

func renderRunDetail(rec journal.RunRecord, transitions []journal.Transition, scenes []journal.SceneAsset) string {
	var b strings.Builder
	fields := [][]string{
		{"ID", rec.ID},
		{"Status", string(rec.Status)},
		{"Title", runLabel(rec)},
		{"Topic", rec.Topic},
		{"Progress", formatRunProgress(rec)},
	}
	if rec.Message != "" {
		fields = append(fields, []string{"Message", rec.Message})
	}
	if rec.OutputPath != "" {
		fields = append(fields,
			[]string{"Video", rec.OutputPath},
			[]string{"Size", formatSize(rec.OutputBytes)},
			[]string{"Duration", fmt.Sprintf("%.1fs", rec.DurationSeconds)},
		)
	}
	fields = append(fields, []string{"Created", rec.CreatedAt.Local().Format(time.DateTime)})
	b.WriteString(renderFields(fields))

	if len(transitions) > 0 {
		rows := make([][]string, 0, len(transitions))
		for _, tr := range transitions {
			rows = append(rows, []string{
				string(tr.From),
				string(tr.To),
				tr.Duration.Round(time.Millisecond).String(),
				tr.Detail,
			})
		}
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"From", "To", "Took", "Detail"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	}

	if len(scenes) > 0 {
		rows := make([][]string, 0, len(scenes))
		for _, scene := range scenes {
			window := ""
			if scene.TrimEnd > scene.TrimStart {
				window = fmt.Sprintf("%.1fs-%.1fs", scene.TrimStart, scene.TrimEnd)
			}
			rows = append(rows, []string{
				strconv.Itoa(scene.Position + 1),
				string(scene.Kind),
				scene.Source,
				window,
				yesNo(scene.HasAudio),
			})
		}
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"#", "Kind", "Source", "Window", "Audio"}, rows,
			[]columnAlignment{alignRight}))
	}
	return b.String()
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			return ctx.withJournal(func(_ *config.Config, j *journal.Journal) error {
				removed, err := j.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, pluralize(removed, "run", "runs"))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Only remove runs finished longer ago than this")
	return cmd
}

func newRunsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count runs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(_ *config.Config, j *journal.Journal) error {
				stats, err := j.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats))
				for _, status := range production.AllStatuses() {
					if count := stats[status]; count > 0 {
						rows = append(rows, []string{string(status), humanize.Comma(int64(count))})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Runs"}, rows,
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func runLabel(rec journal.RunRecord) string {
	if strings.TrimSpace(rec.Title) != "" {
		return rec.Title
	}
	if topic := strings.TrimSpace(rec.Topic); topic != "" {
		return truncate(topic, 40)
	}
	return "(untitled)"
}

func formatRunProgress(rec journal.RunRecord) string {
	if rec.Status == production.StatusCompleted {
		return "100%"
	}
	if rec.ProgressStage == "" {
		return "-"
	}
	return fmt.Sprintf("%s %.0f%%", rec.ProgressStage, rec.ProgressPercent)
}

func formatSize(size int64) string {
	if size <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(size))
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func pluralize(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
