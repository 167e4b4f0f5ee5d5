package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"vidbridge/internal/logging"
	"vidbridge/internal/services"
)

// Submitter accepts encoded units. decoder.Session satisfies it.
type Submitter interface {
	Submit(data []byte) error
}

// PumpOptions controls pacing and backpressure handling.
type PumpOptions struct {
	// FPS paces submissions; zero submits as fast as the session accepts.
	FPS int
	// Retries is how many times a unit rejected with a full queue is retried
	// before it is dropped.
	Retries int
	Backoff time.Duration
	Logger  *slog.Logger
	// AfterUnit runs after each unit is submitted or dropped, with the
	// one-based unit count. A returned error stops the pump.
	AfterUnit func(n int) error
}

// PumpResult summarises a pump run.
type PumpResult struct {
	Units     int
	Submitted int
	Dropped   int
	Retries   int
	Bytes     uint64
	Elapsed   time.Duration
}

// Pump reads every access unit from src and submits it to sink.
func Pump(ctx context.Context, src *Reader, sink Submitter, opts PumpOptions) (PumpResult, error) {
	logger := logging.NewComponentLogger(opts.Logger, "source")
	start := time.Now()
	var result PumpResult

	var tick <-chan time.Time
	if opts.FPS > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(opts.FPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		sample, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
		if tick != nil && result.Units > 0 {
			select {
			case <-ctx.Done():
				result.Elapsed = time.Since(start)
				return result, ctx.Err()
			case <-tick:
			}
		}
		result.Units++

		retries, err := submitWithRetry(ctx, sink, sample.Data, opts)
		result.Retries += retries
		switch {
		case err == nil:
			result.Submitted++
			result.Bytes += uint64(len(sample.Data))
		case services.IsBackpressure(err):
			result.Dropped++
			logger.Debug("access unit dropped",
				logging.Int("unit", result.Units),
				logging.Int("bytes", len(sample.Data)),
				logging.Int("retries", retries),
			)
		default:
			result.Elapsed = time.Since(start)
			return result, err
		}

		if opts.AfterUnit != nil {
			if err := opts.AfterUnit(result.Units); err != nil {
				result.Elapsed = time.Since(start)
				return result, err
			}
		}
	}

	result.Elapsed = time.Since(start)
	if result.Dropped > 0 {
		logging.WarnWithContext(logger, "access units dropped under backpressure", "units_dropped",
			logging.Int("dropped", result.Dropped),
			logging.Int("units", result.Units),
			logging.String(logging.FieldErrorHint, "raise decoder.queue_capacity or playback.submit_retries"),
			logging.String(logging.FieldImpact, "playback skipped frames"),
		)
	}
	return result, nil
}

func submitWithRetry(ctx context.Context, sink Submitter, data []byte, opts PumpOptions) (int, error) {
	retries := 0
	for {
		err := sink.Submit(data)
		if err == nil || !services.IsBackpressure(err) || retries >= opts.Retries {
			return retries, err
		}
		retries++
		if opts.Backoff > 0 {
			timer := time.NewTimer(opts.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return retries, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
