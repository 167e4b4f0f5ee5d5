package history

import "time"

// Status is the outcome of a playback run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one recorded playback.
type Run struct {
	ID             string
	SessionID      string
	SourcePath     string
	Codec          string
	Width          int32
	Height         int32
	Target         string
	Status         Status
	ErrorMessage   string
	Units          int64
	Submitted      int64
	Dropped        int64
	Abandoned      int64
	Rendered       int64
	Swaps          int64
	InputBytes     int64
	QueueHighWater int64
	StartedAt      time.Time
	Duration       time.Duration
}

// Failed reports whether the run ended with an error.
func (r Run) Failed() bool {
	return r.Status == StatusFailed
}
