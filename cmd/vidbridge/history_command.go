package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vidbridge/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var prune int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded playback runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("prune") {
				removed, err := store.Prune(cmd.Context(), prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d run(s)\n", removed)
				return nil
			}

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No playback runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(runs, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().IntVar(&prune, "prune", 0, "Delete all but the newest N runs")
	return cmd
}

func renderHistoryTable(runs []*history.Run, colorize bool) string {
	headers := []string{"Run", "Started", "Source", "Stream", "Target", "Frames", "Dropped", "Status"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := statusLabel(run.Status, colorize)
		if run.Failed() && run.ErrorMessage != "" {
			status += ": " + truncate(run.ErrorMessage, 40)
		}
		rows = append(rows, []string{
			shortRunID(run.ID),
			humanize.Time(run.StartedAt),
			truncate(run.SourcePath, 32),
			fmt.Sprintf("%s %dx%d", run.Codec, run.Width, run.Height),
			run.Target,
			numberPrinter.Sprintf("%d", run.Rendered),
			numberPrinter.Sprintf("%d", run.Dropped),
			status,
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func shortRunID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// truncate keeps the tail of long values, where file names live.
func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max || max < 2 {
		return value
	}
	return "…" + string(runes[len(runes)-max+1:])
}
