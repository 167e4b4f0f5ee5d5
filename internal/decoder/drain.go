package decoder

import (
	"errors"
	"fmt"
	"time"

	"vidbridge/internal/engine"
	"vidbridge/internal/logging"
)

// runDrain releases decoded output until end of stream, until a poll times out
// with shutdown requested, or until the engine reports any other error.
func (s *Session) runDrain(eng engine.Engine) {
	defer s.drain.Done()

	for {
		ev, err := pollOutput(eng, s.opts.outputTimeout)
		if err != nil {
			quiet := errors.Is(err, engine.ErrTimeout) || errors.Is(err, engine.ErrStopped)
			if quiet && s.shuttingDown() {
				s.drainLog.Debug("drain exiting", logging.String("reason", "shutdown"))
				return
			}
			if errors.Is(err, engine.ErrTimeout) {
				continue
			}
			logging.ErrorWithContext(s.drainLog, "engine output failed", "drain_output_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "decoded frames stop until the session is shut down"),
			)
			return
		}

		render := ev.Size != 0
		if err := guard(func() error { return eng.ReleaseOutputEvent(ev, render) }); err != nil {
			logging.WarnWithContext(s.drainLog, "release output failed", "release_failed",
				logging.Uint64(logging.FieldPTS, ev.PTS),
				logging.Error(err),
			)
			render = false
		}

		s.mu.Lock()
		s.stats.FramesReleased++
		if render {
			s.stats.FramesRendered++
		}
		s.mu.Unlock()

		if ev.EndOfStream() {
			s.drainLog.Debug("drain exiting", logging.String("reason", "end_of_stream"), logging.Uint64(logging.FieldPTS, ev.PTS))
			return
		}
	}
}

func pollOutput(eng engine.Engine, timeout time.Duration) (ev engine.OutputEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return eng.AcquireOutputEvent(timeout)
}

func (s *Session) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}
