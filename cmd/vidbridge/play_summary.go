package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numberPrinter = message.NewPrinter(language.English)

func renderPlaySummary(report *playReport) string {
	run := report.run
	stats := report.stats
	pairs := [][2]string{
		{"Session", run.SessionID},
		{"Source", run.SourcePath},
		{"Stream", fmt.Sprintf("%s %dx%d", run.Codec, run.Width, run.Height)},
		{"Access units", numberPrinter.Sprintf("%d", report.pump.Units)},
		{"Submitted", numberPrinter.Sprintf("%d", report.pump.Submitted)},
		{"Dropped (queue full)", numberPrinter.Sprintf("%d", report.pump.Dropped)},
		{"Queue retries", numberPrinter.Sprintf("%d", report.pump.Retries)},
		{"Abandoned units", numberPrinter.Sprintf("%d", stats.Abandoned)},
		{"Frames rendered", numberPrinter.Sprintf("%d", stats.FramesRendered)},
		{"Key frames", numberPrinter.Sprintf("%d", report.keyFrames)},
		{"Input", humanize.IBytes(stats.InputBytes)},
		{"Queue high-water", fmt.Sprintf("%d", stats.QueueHighWater)},
		{"Target swaps", numberPrinter.Sprintf("%d", stats.TargetSwaps)},
		{"Elapsed", run.Duration.Round(time.Millisecond).String()},
		{"Effective fps", effectiveFPS(stats.FramesRendered, run.Duration)},
	}
	for _, t := range report.targets {
		pairs = append(pairs, [2]string{"Frames on " + t.name, numberPrinter.Sprintf("%d", t.frames)})
	}
	return renderKeyValues(pairs)
}

func effectiveFPS(frames uint64, elapsed time.Duration) string {
	if elapsed <= 0 || frames == 0 {
		return "-"
	}
	return numberPrinter.Sprintf("%.1f", float64(frames)/elapsed.Seconds())
}
