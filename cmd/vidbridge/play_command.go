package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidbridge/internal/config"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var opts playOptions
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play an Annex-B H.264/H.265 file through a decoder session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			opts.source = path

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, playErr := runPlay(runCtx, cfg, logger, opts)
			if report == nil {
				return playErr
			}
			if !noHistory {
				recordRun(context.WithoutCancel(runCtx), cfg, logger, report.run)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPlaySummary(report))
			if report.swapRejected != nil {
				fmt.Fprintln(out, "Render target swap was rejected by the engine; playback stayed on the original target.")
			}
			if errors.Is(playErr, context.Canceled) {
				fmt.Fprintln(out, "Playback interrupted.")
			}
			return playErr
		},
	}

	cmd.Flags().StringVarP(&opts.target, "target", "t", "null", "Render target: \"null\" or a frame log file path")
	cmd.Flags().StringVar(&opts.codec, "codec", "", "Codec override (h264 or h265); defaults to decoder.codec")
	cmd.Flags().IntVar(&opts.swapAfter, "swap-after", 0, "Swap the render target after this many access units")
	cmd.Flags().StringVar(&opts.swapTo, "swap-to", "", "Render target to swap to (used with --swap-after)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history database")
	return cmd
}
