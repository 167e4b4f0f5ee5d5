package target

import (
	"sync/atomic"

	"vidbridge/internal/engine"
)

// Null discards frames, counting them.
type Null struct {
	refs   atomic.Int32
	frames atomic.Uint64
}

func NewNull() *Null { return &Null{} }

func (n *Null) Name() string { return "null" }

func (n *Null) Acquire() error {
	n.refs.Add(1)
	return nil
}

func (n *Null) Release() {
	if n.refs.Add(-1) < 0 {
		n.refs.Store(0)
	}
}

func (n *Null) Present(engine.Frame) error {
	n.frames.Add(1)
	return nil
}

// Frames returns the number of frames presented.
func (n *Null) Frames() uint64 { return n.frames.Load() }

// Bound reports whether any binding is outstanding.
func (n *Null) Bound() bool { return n.refs.Load() > 0 }
