package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"skytag/internal/journal"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List extract runs recorded in the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						string(run.Status),
						formatTime(run.StartedAt),
						run.Prefix,
						strconv.Itoa(run.Frames),
						strconv.Itoa(run.Tagged),
						strconv.Itoa(run.Skipped),
						strconv.Itoa(run.Failed),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					textCol("Run"), textCol("Status"), textCol("Started"), textCol("Prefix"),
					numCol("Frames"), numCol("Tagged"), numCol("Skipped"), numCol("Failed"),
				}, rows))
				return nil
			})
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")

	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and the state of each of its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if errors.Is(err, journal.ErrRunNotFound) {
					return fmt.Errorf("run %s not found", args[0])
				}
				if err != nil {
					return err
				}
				frames, err := store.FrameStates(cmd.Context(), run.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				lines := renderSectionHeader("Run "+run.ID, colorize)
				lines = append(lines,
					renderStatusLine("Status", runStatusKind(run.Status), string(run.Status), colorize),
					renderStatusLine("Video", statusInfo, run.Video, colorize),
					renderStatusLine("Destination", statusInfo, run.Destination, colorize),
					renderStatusLine("Prefix", statusInfo, run.Prefix, colorize),
					renderStatusLine("Started", statusInfo, formatTime(run.StartedAt), colorize),
					renderStatusLine("Finished", statusInfo, formatTime(run.FinishedAt), colorize),
					renderStatusLine("Frames", statusInfo,
						fmt.Sprintf("%d tagged, %d skipped, %d failed of %d", run.Tagged, run.Skipped, run.Failed, run.Frames), colorize),
				)
				switch run.Extraction {
				case journal.ExtractionCompleted:
					lines = append(lines, renderStatusLine("Extraction", statusOK, fmt.Sprintf("%d frames", run.ExtractedFrames), colorize))
				case journal.ExtractionStarted:
					lines = append(lines, renderStatusLine("Extraction", statusWarn, "interrupted", colorize))
				default:
					if run.Frames > 0 {
						lines = append(lines, renderStatusLine("Extraction", statusInfo, "reused", colorize))
					}
				}
				if run.Error != "" {
					lines = append(lines, renderStatusLine("Error", statusError, run.Error, colorize))
				}
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}

				if len(frames) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(frames))
				for _, f := range frames {
					rows = append(rows, []string{strconv.Itoa(f.Index), f.Name, string(f.State), dash(f.Error)})
				}
				fmt.Fprintln(out, renderTable([]column{numCol("Index"), textCol("File"), textCol("State"), textCol("Error")}, rows))
				return nil
			})
		},
	}
}

func runStatusKind(status journal.RunStatus) statusKind {
	switch status {
	case journal.RunCompleted:
		return statusOK
	case journal.RunPartial:
		return statusWarn
	case journal.RunFailed:
		return statusError
	default:
		return statusInfo
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
