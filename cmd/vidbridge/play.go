package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"vidbridge/internal/config"
	"vidbridge/internal/decoder"
	"vidbridge/internal/engine"
	"vidbridge/internal/engine/sim"
	"vidbridge/internal/history"
	"vidbridge/internal/logging"
	"vidbridge/internal/services"
	"vidbridge/internal/source"
	"vidbridge/internal/target"
)

type playOptions struct {
	source    string
	target    string
	codec     string
	swapAfter int
	swapTo    string
}

type targetReport struct {
	name   string
	frames uint64
}

type playReport struct {
	run     *history.Run
	stats   decoder.Stats
	pump    source.PumpResult
	targets []targetReport
	// keyFrames counts key-frame units the engine received.
	keyFrames int
	// swapRejected is set when the engine refused a live swap.
	swapRejected error
}

// runPlay plays one file through a decoder session on the simulated engine.
// The report is returned even when playback fails part way.
func runPlay(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts playOptions) (*playReport, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithComponent(ctx, "play")
	logger = logging.WithContext(ctx, logger)

	codecName := opts.codec
	if codecName == "" {
		codecName = cfg.Decoder.Codec
	}
	codec, err := engine.ParseCodec(codecName)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "play", "parse codec", "", err)
	}

	file, err := os.Open(opts.source)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer file.Close()

	reader, err := source.NewReader(file, codec, cfg.Playback.FPS)
	if err != nil {
		return nil, err
	}

	primary, err := target.Open(opts.target)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "play", "open target", "", err)
	}
	var secondary target.FrameCounter
	if opts.swapAfter > 0 {
		if opts.swapTo == "" {
			return nil, services.Wrap(services.ErrValidation, "play", "swap", "--swap-after requires --swap-to", nil)
		}
		secondary, err = target.Open(opts.swapTo)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "play", "open swap target", "", err)
		}
	}

	factory := sim.NewFactory(sim.Options{
		InputSlots: cfg.Engine.InputSlots,
		SlotSize:   cfg.Engine.SlotSize,
		LiveRebind: cfg.Engine.LiveRebind,
	})
	session, err := decoder.New(logger, cfg.Decoder.Width, cfg.Decoder.Height, codec, factory.New, decoder.OptionsFromConfig(cfg)...)
	if err != nil {
		return nil, err
	}
	defer session.Shutdown()

	report := &playReport{
		run: &history.Run{
			ID:         runID,
			SessionID:  session.ID(),
			SourcePath: opts.source,
			Codec:      codec.String(),
			Width:      cfg.Decoder.Width,
			Height:     cfg.Decoder.Height,
			Target:     primary.Name(),
			StartedAt:  time.Now(),
		},
	}

	playErr := session.SetRenderTarget(primary)
	if playErr == nil {
		report.pump, playErr = source.Pump(ctx, reader, session, source.PumpOptions{
			FPS:     cfg.Playback.FPS,
			Retries: cfg.Playback.SubmitRetries,
			Backoff: cfg.RetryBackoff(),
			Logger:  logger,
			AfterUnit: func(n int) error {
				if secondary == nil || n != opts.swapAfter {
					return nil
				}
				err := session.SetRenderTarget(secondary)
				if errors.Is(err, services.ErrUnsupported) {
					report.swapRejected = err
					logging.WarnWithContext(logger, "render target swap rejected", "swap_rejected",
						logging.String(logging.FieldTarget, secondary.Name()),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "set engine.live_rebind = true to allow live swaps"),
						logging.String(logging.FieldImpact, "playback continues on the original target"),
					)
					return nil
				}
				if err == nil {
					report.run.Target = primary.Name() + " -> " + secondary.Name()
				}
				return err
			},
		})
	}

	session.Shutdown()
	report.stats = session.Stats()
	if eng := factory.Last(); eng != nil {
		report.keyFrames = eng.Stats().KeyFrames
	}
	report.targets = append(report.targets, targetReport{name: primary.Name(), frames: primary.Frames()})
	if secondary != nil {
		report.targets = append(report.targets, targetReport{name: secondary.Name(), frames: secondary.Frames()})
	}

	run := report.run
	run.Duration = time.Since(run.StartedAt)
	run.Units = int64(report.pump.Units)
	run.Submitted = int64(report.pump.Submitted)
	run.Dropped = int64(report.pump.Dropped)
	run.Abandoned = int64(report.stats.Abandoned)
	run.Rendered = int64(report.stats.FramesRendered)
	run.Swaps = int64(report.stats.TargetSwaps)
	run.InputBytes = int64(report.stats.InputBytes)
	run.QueueHighWater = int64(report.stats.QueueHighWater)
	run.Status = history.StatusCompleted
	if playErr != nil {
		run.Status = history.StatusFailed
		run.ErrorMessage = playErr.Error()
		logging.ErrorWithContext(logger, "playback failed", "play_failed",
			logging.String("error_kind", services.Kind(playErr)),
			logging.Error(playErr),
		)
	}
	return report, playErr
}

// recordRun stores the run in the history database. Failures are logged and
// do not fail playback.
func recordRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, run *history.Run) {
	store, err := history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is not recorded"),
		)
		return
	}
	defer store.Close()
	if err := store.Record(ctx, run); err != nil {
		logging.WarnWithContext(logger, "history write failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is not recorded"),
		)
	}
}
