package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"skytag/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var videoPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, directory and tool status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			lines = append(lines, renderStatusLine("Config file", statusInfo,
				fmt.Sprintf("%s (exists: %s)", ctx.configPath, yesNo(ctx.configSeen)), colorize))
			lines = append(lines, renderStatusLine("Journal", statusInfo, cfg.JournalPath(), colorize))
			lines = append(lines, "")

			lines = append(lines, renderSectionHeader("Directories", colorize)...)
			lines = append(lines, preflightLines(preflight.RunAll(cfg, "", ""), colorize)...)
			lines = append(lines, "")

			lines = append(lines, renderSectionHeader("Tools", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize)...)

			if video := strings.TrimSpace(videoPath); video != "" {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Video", colorize)...)
				probe := preflight.ProbeVideo(cmd.Context(), cfg, video)
				kind := statusOK
				switch {
				case !probe.Inspected:
					kind = statusError
				case !probe.HasTelemetry():
					kind = statusWarn
				}
				lines = append(lines, renderStatusLine("Video", kind, probe.Detail(), colorize))
				if !probe.CreationTime.IsZero() {
					lines = append(lines, renderStatusLine("Created", statusInfo, formatTime(probe.CreationTime), colorize))
				}
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}

	cmd.Flags().StringVar(&videoPath, "video", "", "Also inspect this video for a telemetry track")
	return cmd
}
