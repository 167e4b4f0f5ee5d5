package decoder

// State is the lifecycle phase of a Session.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// closed reports whether the state rejects further work.
func (s State) closed() bool {
	return s == StateShuttingDown || s == StateTerminated
}
