package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"vidbridge/internal/engine"
)

// Options shape a simulated engine.
type Options struct {
	InputSlots int
	SlotSize   int
	// LiveRebind allows RebindTarget on a started engine. When false the
	// engine reports engine.ErrUnsupported, like codecs that need a restart.
	LiveRebind bool
}

// Input records one SubmitInputSlot call.
type Input struct {
	PTS   uint64
	Data  []byte
	Flags engine.BufferFlags
}

// Stats summarises engine activity.
type Stats struct {
	Chunks    int
	Frames    int
	KeyFrames int
	Rendered  int
	Dropped   int
	Rebinds   int
}

type phase int

const (
	phaseCreated phase = iota
	phaseConfigured
	phaseStarted
	phaseStopped
	phaseDestroyed
)

// Engine is an in-memory decoder engine. Every input chunk that starts a new
// presentation timestamp produces one output event holding its slot until the
// event is released; continuation chunks give their slot back immediately.
type Engine struct {
	opts  Options
	codec engine.Codec

	mu          sync.Mutex
	phase       phase
	format      engine.Format
	target      engine.Target
	outstanding map[int]bool
	lastPTS     uint64
	havePTS     bool
	inputs      []Input
	stats       Stats
	destroys    int

	slots    [][]byte
	free     chan int
	pending  chan engine.OutputEvent
	stopped  chan struct{}
	stopOnce sync.Once
}

// New returns an unconfigured engine for codec.
func New(codec engine.Codec, opts Options) (*Engine, error) {
	if !codec.Valid() {
		return nil, fmt.Errorf("sim engine: %w: %s", engine.ErrUnsupported, codec)
	}
	if opts.InputSlots <= 0 {
		return nil, errors.New("sim engine: input slots must be positive")
	}
	if opts.SlotSize <= 0 {
		return nil, errors.New("sim engine: slot size must be positive")
	}
	e := &Engine{
		opts:        opts,
		codec:       codec,
		outstanding: make(map[int]bool, opts.InputSlots),
		slots:       make([][]byte, opts.InputSlots),
		free:        make(chan int, opts.InputSlots),
		pending:     make(chan engine.OutputEvent, opts.InputSlots),
		stopped:     make(chan struct{}),
	}
	for i := range e.slots {
		e.slots[i] = make([]byte, opts.SlotSize)
		e.free <- i
	}
	return e, nil
}

func (e *Engine) Configure(format engine.Format) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != phaseCreated {
		return fmt.Errorf("configure: %w", engine.ErrIllegalState)
	}
	if format.MIME != e.codec.MIME() {
		return fmt.Errorf("configure: mime %q does not match codec %s", format.MIME, e.codec)
	}
	if format.Width <= 0 || format.Height <= 0 {
		return fmt.Errorf("configure: invalid dimensions %dx%d", format.Width, format.Height)
	}
	e.format = format
	e.phase = phaseConfigured
	return nil
}

func (e *Engine) BindTarget(target engine.Target) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != phaseConfigured {
		return fmt.Errorf("bind target: %w", engine.ErrIllegalState)
	}
	e.target = target
	return nil
}

func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != phaseConfigured {
		return fmt.Errorf("start: %w", engine.ErrIllegalState)
	}
	e.phase = phaseStarted
	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.phase {
	case phaseStarted, phaseConfigured:
		e.phase = phaseStopped
	case phaseStopped:
		return nil
	default:
		return fmt.Errorf("stop: %w", engine.ErrIllegalState)
	}
	e.stopOnce.Do(func() { close(e.stopped) })
	return nil
}

func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroys++
	if e.phase == phaseDestroyed {
		return fmt.Errorf("destroy: %w", engine.ErrIllegalState)
	}
	e.phase = phaseDestroyed
	e.target = nil
	e.stopOnce.Do(func() { close(e.stopped) })
	return nil
}

func (e *Engine) AcquireInputSlot(timeout time.Duration) (engine.InputSlot, error) {
	if err := e.requireStarted(); err != nil {
		return engine.InputSlot{}, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case idx := <-e.free:
		e.mu.Lock()
		e.outstanding[idx] = true
		e.mu.Unlock()
		return engine.InputSlot{Index: idx, Buf: e.slots[idx]}, nil
	case <-e.stopped:
		return engine.InputSlot{}, engine.ErrStopped
	case <-timer.C:
		return engine.InputSlot{}, engine.ErrTimeout
	}
}

func (e *Engine) SubmitInputSlot(slot engine.InputSlot, size int, pts uint64, flags engine.BufferFlags) error {
	e.mu.Lock()
	if e.phase != phaseStarted {
		e.mu.Unlock()
		return engine.ErrStopped
	}
	if !e.outstanding[slot.Index] {
		e.mu.Unlock()
		return fmt.Errorf("submit input slot %d: not acquired", slot.Index)
	}
	if size < 0 || size > len(e.slots[slot.Index]) {
		e.mu.Unlock()
		return fmt.Errorf("submit input slot %d: size %d out of range", slot.Index, size)
	}
	data := make([]byte, size)
	copy(data, e.slots[slot.Index][:size])
	e.inputs = append(e.inputs, Input{PTS: pts, Data: data, Flags: flags})
	e.stats.Chunks++

	eos := flags&engine.FlagEndOfStream != 0
	newFrame := size > 0 && (!e.havePTS || pts != e.lastPTS)
	if size > 0 {
		e.lastPTS = pts
		e.havePTS = true
	}
	if !eos && !newFrame {
		delete(e.outstanding, slot.Index)
		e.mu.Unlock()
		e.free <- slot.Index
		return nil
	}
	if newFrame {
		e.stats.Frames++
		if flags&engine.FlagKeyFrame != 0 {
			e.stats.KeyFrames++
		}
	}
	e.mu.Unlock()

	// pending has one entry per slot, so this never blocks.
	e.pending <- engine.OutputEvent{Index: slot.Index, Size: size, PTS: pts, Flags: flags}
	return nil
}

func (e *Engine) AcquireOutputEvent(timeout time.Duration) (engine.OutputEvent, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-e.pending:
		return ev, nil
	default:
	}
	select {
	case ev := <-e.pending:
		return ev, nil
	case <-e.stopped:
		// Events queued before Stop are still delivered.
		select {
		case ev := <-e.pending:
			return ev, nil
		default:
		}
		return engine.OutputEvent{}, engine.ErrStopped
	case <-timer.C:
		return engine.OutputEvent{}, engine.ErrTimeout
	}
}

func (e *Engine) ReleaseOutputEvent(ev engine.OutputEvent, render bool) error {
	e.mu.Lock()
	if !e.outstanding[ev.Index] {
		e.mu.Unlock()
		return fmt.Errorf("release output %d: not outstanding", ev.Index)
	}
	delete(e.outstanding, ev.Index)
	target := e.target
	frame := engine.Frame{PTS: ev.PTS, Size: ev.Size, Width: e.format.Width, Height: e.format.Height}
	var presenter engine.Presenter
	if render && target != nil {
		presenter, _ = target.(engine.Presenter)
		e.stats.Rendered++
	} else if ev.Size > 0 {
		e.stats.Dropped++
	}
	// Present under the lock so a concurrent rebind cannot release the
	// target while a frame is in flight to it.
	var err error
	if presenter != nil {
		err = presenter.Present(frame)
	}
	e.mu.Unlock()

	e.free <- ev.Index
	if err != nil {
		return fmt.Errorf("present pts %d: %w", ev.PTS, err)
	}
	return nil
}

func (e *Engine) RebindTarget(target engine.Target) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opts.LiveRebind {
		return engine.ErrUnsupported
	}
	if e.phase != phaseStarted {
		return fmt.Errorf("rebind target: %w", engine.ErrIllegalState)
	}
	e.target = target
	e.stats.Rebinds++
	return nil
}

func (e *Engine) requireStarted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.phase {
	case phaseStarted:
		return nil
	case phaseStopped, phaseDestroyed:
		return engine.ErrStopped
	default:
		return fmt.Errorf("acquire input slot: %w", engine.ErrIllegalState)
	}
}

// Inputs returns a copy of every submission seen so far, in order.
func (e *Engine) Inputs() []Input {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Input, len(e.inputs))
	copy(out, e.inputs)
	return out
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Target returns the currently bound target.
func (e *Engine) Target() engine.Target {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// DestroyCalls reports how many times Destroy was invoked.
func (e *Engine) DestroyCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroys
}

// Destroyed reports whether Destroy has run.
func (e *Engine) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == phaseDestroyed
}

// Format returns the format passed to Configure.
func (e *Engine) Format() engine.Format {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.format
}
