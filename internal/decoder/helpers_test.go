package decoder

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidbridge/internal/engine"
	"vidbridge/internal/engine/sim"
	"vidbridge/internal/logging"
	"vidbridge/internal/services"
)

type countingTarget struct {
	name     string
	acquired atomic.Int32
	released atomic.Int32

	mu     sync.Mutex
	frames []engine.Frame
}

func newTarget(name string) *countingTarget { return &countingTarget{name: name} }

func (c *countingTarget) Name() string { return c.name }

func (c *countingTarget) Acquire() error {
	c.acquired.Add(1)
	return nil
}

func (c *countingTarget) Release() { c.released.Add(1) }

func (c *countingTarget) Present(f engine.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *countingTarget) presented() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// balanced reports whether every binding reference has been returned.
func (c *countingTarget) balanced() bool {
	return c.acquired.Load() == c.released.Load()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) count(substr string) int {
	return strings.Count(b.String(), substr)
}

func bufferLogger(buf *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func simOptions() sim.Options {
	return sim.Options{InputSlots: 4, SlotSize: 1024, LiveRebind: true}
}

func newTestSession(t *testing.T, factory engine.Factory, opts ...Option) *Session {
	t.Helper()
	s, err := New(logging.NewNop(), 1280, 720, engine.CodecH264, factory, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

// submitAll submits every unit, retrying while the queue reports backpressure.
func submitAll(t *testing.T, s *Session, units [][]byte) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for i, u := range units {
		for {
			err := s.Submit(u)
			if err == nil {
				break
			}
			if !errors.Is(err, services.ErrQueueFull) {
				t.Fatalf("submit %d: %v", i, err)
			}
			if time.Now().After(deadline) {
				t.Fatalf("submit %d: queue never drained", i)
			}
			time.Sleep(time.Millisecond)
		}
	}
}

// shutdownWithin fails the test if Shutdown does not return before d.
func shutdownWithin(t *testing.T, s *Session, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("Shutdown did not return within %s", d)
	}
}

// dataInputs drops the end-of-stream marker from recorded engine inputs.
func dataInputs(inputs []sim.Input) []sim.Input {
	out := make([]sim.Input, 0, len(inputs))
	for _, in := range inputs {
		if in.Flags&engine.FlagEndOfStream != 0 {
			continue
		}
		out = append(out, in)
	}
	return out
}

// scriptedEngine overrides selected calls of a simulated engine.
type scriptedEngine struct {
	*sim.Engine

	configureErr error
	startErr     error
	acquireInput func(time.Duration) (engine.InputSlot, error)
	submitInput  func(engine.InputSlot, int, uint64, engine.BufferFlags) error
	acquireOut   func(time.Duration) (engine.OutputEvent, error)
	outputCalls  atomic.Int32
}

func (e *scriptedEngine) Configure(f engine.Format) error {
	if e.configureErr != nil {
		return e.configureErr
	}
	return e.Engine.Configure(f)
}

func (e *scriptedEngine) Start() error {
	if e.startErr != nil {
		return e.startErr
	}
	return e.Engine.Start()
}

func (e *scriptedEngine) AcquireInputSlot(d time.Duration) (engine.InputSlot, error) {
	if e.acquireInput != nil {
		return e.acquireInput(d)
	}
	return e.Engine.AcquireInputSlot(d)
}

func (e *scriptedEngine) SubmitInputSlot(slot engine.InputSlot, size int, pts uint64, flags engine.BufferFlags) error {
	if e.submitInput != nil {
		return e.submitInput(slot, size, pts, flags)
	}
	return e.Engine.SubmitInputSlot(slot, size, pts, flags)
}

func (e *scriptedEngine) AcquireOutputEvent(d time.Duration) (engine.OutputEvent, error) {
	e.outputCalls.Add(1)
	if e.acquireOut != nil {
		return e.acquireOut(d)
	}
	return e.Engine.AcquireOutputEvent(d)
}

func newScripted(t *testing.T, configure func(*scriptedEngine)) (*scriptedEngine, engine.Factory) {
	t.Helper()
	base, err := sim.New(engine.CodecH264, simOptions())
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	scripted := &scriptedEngine{Engine: base}
	if configure != nil {
		configure(scripted)
	}
	return scripted, func(engine.Codec) (engine.Engine, error) { return scripted, nil }
}
