package decoder

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	Submitted      uint64
	Rejected       uint64
	Abandoned      uint64
	SlotTimeouts   uint64
	InputBytes     uint64
	FramesReleased uint64
	FramesRendered uint64
	TargetSwaps    uint64
	Pending        int
	QueueHighWater int
	NextPTS        uint64
}

// Stats returns the current counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() Stats {
	out := s.stats
	out.Pending = s.queue.len()
	out.QueueHighWater = s.queue.highWater
	out.NextPTS = s.nextPTS
	return out
}
