package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"skytag/internal/journal"
	"skytag/internal/logging"
	"skytag/internal/pipeline"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		destination string
		prefix      string
		resume      bool
		noGeoTrack  bool
	)

	cmd := &cobra.Command{
		Use:   "extract <video>",
		Short: "Extract 1 fps stills from a video and geotag them from its telemetry track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			logger, logPath, err := logging.NewFromConfig(cfg, runID)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, logging.RunLogPattern, logPath)

			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			report, runErr := pipeline.Run(signalCtx, cfg, pipeline.Request{
				RunID:        runID,
				Video:        args[0],
				Destination:  destination,
				Prefix:       prefix,
				Resume:       resume,
				SkipGeoTrack: noGeoTrack,
			}, pipeline.Deps{Logger: logger, Journal: store})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(reportLines(report, logPath, shouldColorize(out)), "\n"))
			return runErr
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", "", "Destination directory (default: current directory)")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Prefix for generated file names (default: video file name)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Reuse the last completed extraction and skip frames already finished")
	cmd.Flags().BoolVar(&noGeoTrack, "no-geotrack", false, "Do not write the GeoJSON track file")
	return cmd
}

func reportLines(report pipeline.Report, logPath string, colorize bool) []string {
	lines := renderSectionHeader("Extract", colorize)
	lines = append(lines, renderStatusLine("Run", statusInfo, dash(report.RunID), colorize))
	lines = append(lines, renderStatusLine("Destination", statusInfo, dash(report.Destination), colorize))
	if report.Trackpoints > 0 {
		lines = append(lines, renderStatusLine("Trackpoints", statusInfo, fmt.Sprintf("%d", report.Trackpoints), colorize))
	}

	framesDetail := fmt.Sprintf("%d tagged, %d skipped of %d", report.Tagged, report.Skipped, report.Frames)
	if report.FramesReused {
		framesDetail += " (reused)"
	}
	framesKind := statusOK
	if report.Frames == 0 || report.Tagged+report.Skipped < report.Frames {
		framesKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Frames", framesKind, framesDetail, colorize))

	if failed := report.Failed(); failed > 0 {
		lines = append(lines, renderStatusLine("Failed", statusError,
			fmt.Sprintf("%d base, %d timestamp (rerun with --resume)", report.BaseFailed, report.ShiftFailed), colorize))
	}

	switch {
	case report.GeoTrackErr != nil:
		lines = append(lines, renderStatusLine("Track", statusWarn, report.GeoTrackErr.Error(), colorize))
	case report.GeoTrackPath != "":
		lines = append(lines, renderStatusLine("Track", statusOK, report.GeoTrackPath, colorize))
	}
	if logPath != "" {
		lines = append(lines, renderStatusLine("Log", statusInfo, logPath, colorize))
	}
	lines = append(lines, renderStatusLine("Elapsed", statusInfo, report.Elapsed.Round(time.Millisecond).String(), colorize))
	return lines
}
