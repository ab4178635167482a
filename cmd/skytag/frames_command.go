package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"skytag/internal/fusion"
)

func newFramesCommand(ctx *commandContext) *cobra.Command {
	var (
		prefix    string
		extension string
	)

	cmd := &cobra.Command{
		Use:   "frames <dir>",
		Short: "List extracted frames and the trackpoint index each one maps to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ext := cfg.Extraction.ImageExtension
			if strings.TrimSpace(extension) != "" {
				ext = strings.TrimPrefix(strings.TrimSpace(extension), ".")
			}
			frames, err := fusion.ListFrames(args[0], prefix, ext)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(frames))
			for _, f := range frames {
				rows = append(rows, []string{strconv.Itoa(f.Counter), strconv.Itoa(f.Index), f.Name})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]column{numCol("Counter"), numCol("Index"), textCol("File")}, rows))
			fmt.Fprintf(out, "%d frames\n", len(frames))
			return nil
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Frame file name prefix")
	cmd.Flags().StringVar(&extension, "ext", "", "Image extension (default from config)")
	_ = cmd.MarkFlagRequired("prefix")
	return cmd
}
