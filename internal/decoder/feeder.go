package decoder

import (
	"errors"
	"fmt"

	"vidbridge/internal/engine"
	"vidbridge/internal/logging"
	"vidbridge/internal/services"
)

// runFeeder moves queued units into engine input slots until shutdown is
// requested and the queue is empty. mu is never held across an engine call.
func (s *Session) runFeeder(eng engine.Engine) {
	defer s.feeder.Done()

	s.mu.Lock()
	for {
		for s.queue.len() == 0 && !s.shutdown {
			s.cond.Wait()
		}
		u, ok := s.queue.pop()
		if !ok {
			s.mu.Unlock()
			s.feederLog.Debug("feeder exiting")
			return
		}
		pts := s.nextPTS
		s.nextPTS++
		s.mu.Unlock()

		sent, err := s.feedUnit(eng, u.data, pts)
		if err != nil {
			s.abandon(pts, sent, len(u.data), err)
		}

		s.mu.Lock()
	}
}

// feedUnit splits data across as many input slots as needed, tagging the first
// chunk with the unit's key-frame and codec-config flags. It returns the
// number of bytes handed to the engine and the error that stopped it short.
func (s *Session) feedUnit(eng engine.Engine, data []byte, pts uint64) (sent int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	flags := s.codec.UnitFlags(data)
	for sent < len(data) {
		slot, err := eng.AcquireInputSlot(s.opts.inputTimeout)
		if err != nil {
			if errors.Is(err, engine.ErrTimeout) {
				return sent, services.Wrap(services.ErrSlotTimeout, "feeder", "acquire input slot", s.opts.inputTimeout.String(), err)
			}
			return sent, err
		}
		n := copy(slot.Buf, data[sent:])
		if n == 0 {
			return sent, fmt.Errorf("input slot %d has no capacity", slot.Index)
		}
		if err := eng.SubmitInputSlot(slot, n, pts, flags); err != nil {
			return sent, err
		}
		sent += n
		// Only the first chunk of a unit carries its flags.
		flags = 0
	}
	return sent, nil
}

// abandon drops the rest of a unit. The frame may decode with artifacts; no
// broken-frame signal is sent to the engine.
func (s *Session) abandon(pts uint64, sent, total int, err error) {
	s.mu.Lock()
	s.stats.Abandoned++
	if errors.Is(err, services.ErrSlotTimeout) {
		s.stats.SlotTimeouts++
	}
	s.mu.Unlock()

	logging.WarnWithContext(s.feederLog, "encoded unit abandoned", "unit_abandoned",
		logging.Uint64(logging.FieldPTS, pts),
		logging.Int("sent_bytes", sent),
		logging.Int("unit_bytes", total),
		logging.String("error_kind", services.Kind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "engine is not returning input slots; check the output drain"),
		logging.String(logging.FieldImpact, "frame may decode with artifacts"),
	)
}
