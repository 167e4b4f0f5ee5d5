package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"vidbridge/internal/engine"
	"vidbridge/internal/engine/sim"
	"vidbridge/internal/logging"
	"vidbridge/internal/services"
)

func TestNewRejectsUnusableArguments(t *testing.T) {
	factory := sim.NewFactory(simOptions()).New
	tests := []struct {
		name    string
		width   int32
		height  int32
		codec   engine.Codec
		factory engine.Factory
		opts    []Option
	}{
		{name: "nil factory", width: 1280, height: 720, codec: engine.CodecH264},
		{name: "zero capacity", width: 1280, height: 720, codec: engine.CodecH264, factory: factory, opts: []Option{WithQueueCapacity(0)}},
		{name: "bad dimensions", width: 0, height: 720, codec: engine.CodecH264, factory: factory},
		{name: "unknown codec", width: 1280, height: 720, codec: engine.Codec(42), factory: factory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(logging.NewNop(), tt.width, tt.height, tt.codec, tt.factory, tt.opts...)
			if !errors.Is(err, services.ErrResource) {
				t.Fatalf("expected ErrResource, got %v", err)
			}
		})
	}
}

func TestNewSessionIsConfigured(t *testing.T) {
	s := newTestSession(t, sim.NewFactory(simOptions()).New, WithSessionID("abc-123"))
	if s.State() != StateConfigured {
		t.Fatalf("expected configured, got %s", s.State())
	}
	if s.ID() != "abc-123" {
		t.Fatalf("unexpected id %q", s.ID())
	}
}

func TestScenario1280x720TwoUnits(t *testing.T) {
	factory := sim.NewFactory(simOptions())
	buf := &syncBuffer{}
	s, err := New(bufferLogger(buf), 1280, 720, engine.CodecH264, factory.New)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Shutdown)
	target := newTarget("surface")

	if err := s.SetRenderTarget(target); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}
	if s.State() != StateRunning {
		t.Fatalf("expected running, got %s", s.State())
	}
	for i, unit := range [][]byte{bytes.Repeat([]byte{0xA}, 64), bytes.Repeat([]byte{0xB}, 64)} {
		if err := s.Submit(unit); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	shutdownWithin(t, s, 5*time.Second)

	eng := factory.Last()
	if got := eng.Format(); got != (engine.Format{MIME: "video/avc", Width: 1280, Height: 720}) {
		t.Fatalf("unexpected format %+v", got)
	}
	inputs := dataInputs(eng.Inputs())
	if len(inputs) != 2 {
		t.Fatalf("expected 2 data inputs, got %d", len(inputs))
	}
	if inputs[0].PTS != 0 || len(inputs[0].Data) != 64 || inputs[1].PTS != 1 || len(inputs[1].Data) != 64 {
		t.Fatalf("unexpected inputs: pts %d/%d sizes %d/%d", inputs[0].PTS, inputs[1].PTS, len(inputs[0].Data), len(inputs[1].Data))
	}
	if s.State() != StateTerminated {
		t.Fatalf("expected terminated, got %s", s.State())
	}
	if !eng.Destroyed() || eng.DestroyCalls() != 1 {
		t.Fatalf("engine not destroyed exactly once (%d calls)", eng.DestroyCalls())
	}
	if target.acquired.Load() != 1 || target.released.Load() != 1 {
		t.Fatalf("target acquire/release = %d/%d", target.acquired.Load(), target.released.Load())
	}
	if target.presented() != 2 {
		t.Fatalf("expected 2 rendered frames, got %d", target.presented())
	}
	if stats := s.Stats(); stats.SlotTimeouts != 0 || stats.Abandoned != 0 {
		t.Fatalf("unexpected slot timeouts: %+v", stats)
	}
	if n := buf.count("unit_abandoned"); n != 0 {
		t.Fatalf("expected no abandoned-unit log entries, got %d:\n%s", n, buf.String())
	}
}

func TestFIFOOrderAndOnePTSPerUnit(t *testing.T) {
	factory := sim.NewFactory(sim.Options{InputSlots: 4, SlotSize: 16, LiveRebind: true})
	s := newTestSession(t, factory.New)
	if err := s.SetRenderTarget(newTarget("a")); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}

	units := make([][]byte, 50)
	for i := range units {
		// Sizes vary so some units span several 16-byte slots.
		units[i] = bytes.Repeat([]byte{byte(i)}, 1+(i*7)%60)
	}
	submitAll(t, s, units)
	shutdownWithin(t, s, 5*time.Second)

	inputs := dataInputs(factory.Last().Inputs())
	var (
		rebuilt [][]byte
		lastPTS uint64
	)
	for i, in := range inputs {
		if i == 0 || in.PTS != lastPTS {
			if i > 0 && in.PTS != lastPTS+1 {
				t.Fatalf("pts jumped from %d to %d", lastPTS, in.PTS)
			}
			rebuilt = append(rebuilt, nil)
			lastPTS = in.PTS
		}
		rebuilt[len(rebuilt)-1] = append(rebuilt[len(rebuilt)-1], in.Data...)
	}
	if len(rebuilt) != len(units) {
		t.Fatalf("expected %d units at the engine, got %d", len(units), len(rebuilt))
	}
	for i := range units {
		if !bytes.Equal(rebuilt[i], units[i]) {
			t.Fatalf("unit %d differs at the engine", i)
		}
	}
	if inputs[0].PTS != 0 {
		t.Fatalf("first pts = %d, want 0", inputs[0].PTS)
	}
	stats := s.Stats()
	if stats.Submitted != uint64(len(units)) || stats.Abandoned != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSubmitCopiesCallerBuffer(t *testing.T) {
	factory := sim.NewFactory(simOptions())
	s := newTestSession(t, factory.New)
	buf := []byte("original")
	if err := s.Submit(buf); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	copy(buf, "mutated!")
	if err := s.SetRenderTarget(newTarget("a")); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}
	shutdownWithin(t, s, 5*time.Second)
	inputs := dataInputs(factory.Last().Inputs())
	if len(inputs) != 1 || string(inputs[0].Data) != "original" {
		t.Fatalf("engine saw %+v", inputs)
	}
}

func TestFillToCapacityThenQueueFull(t *testing.T) {
	factory := sim.NewFactory(simOptions())
	s := newTestSession(t, factory.New)

	for i := 0; i < DefaultQueueCapacity; i++ {
		if err := s.Submit([]byte{byte(i)}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	err := s.Submit([]byte{0xFF})
	if !errors.Is(err, services.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	stats := s.Stats()
	if stats.Pending != DefaultQueueCapacity || stats.Rejected != 1 || stats.Submitted != DefaultQueueCapacity {
		t.Fatalf("queue changed by rejected submit: %+v", stats)
	}

	if err := s.SetRenderTarget(newTarget("a")); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}
	shutdownWithin(t, s, 5*time.Second)

	inputs := dataInputs(factory.Last().Inputs())
	if len(inputs) != DefaultQueueCapacity {
		t.Fatalf("expected %d inputs, got %d", DefaultQueueCapacity, len(inputs))
	}
	for i, in := range inputs {
		if in.PTS != uint64(i) || in.Data[0] != byte(i) {
			t.Fatalf("input %d: pts %d data %v", i, in.PTS, in.Data)
		}
	}
}

func TestSubmitSucceedsAfterFeederTakesUnit(t *testing.T) {
	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	_, factory := newScripted(t, func(e *scriptedEngine) {
		e.acquireInput = func(d time.Duration) (engine.InputSlot, error) {
			once.Do(func() { close(entered) })
			<-gate
			return e.Engine.AcquireInputSlot(d)
		}
	})
	s := newTestSession(t, factory)
	if err := s.SetRenderTarget(newTarget("a")); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}

	// The feeder holds unit 0 while it waits for an input slot.
	if err := s.Submit([]byte{0}); err != nil {
		t.Fatalf("submit 0: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		close(gate)
		t.Fatal("feeder never requested an input slot")
	}

	for i := 1; i <= DefaultQueueCapacity; i++ {
		if err := s.Submit([]byte{byte(i)}); err != nil {
			close(gate)
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := s.Submit([]byte{0xFF}); !errors.Is(err, services.ErrQueueFull) {
		close(gate)
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(gate)
	deadline := time.Now().Add(5 * time.Second)
	for s.Stats().Pending == DefaultQueueCapacity {
		if time.Now().After(deadline) {
			t.Fatal("feeder never took a queued unit")
		}
		time.Sleep(time.Millisecond)
	}
	if err := s.Submit([]byte{0xFE}); err != nil {
		t.Fatalf("submit after feeder progress: %v", err)
	}
	shutdownWithin(t, s, 5*time.Second)

	stats := s.Stats()
	if stats.Submitted != DefaultQueueCapacity+2 || stats.Rejected != 1 || stats.Abandoned != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestFeederTagsFirstChunkWithUnitFlags(t *testing.T) {
	factory := sim.NewFactory(sim.Options{InputSlots: 4, SlotSize: 16, LiveRebind: true})
	s := newTestSession(t, factory.New)
	if err := s.SetRenderTarget(newTarget("a")); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}

	idr := append([]byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 0, 1, 0x68, 0xce, 0, 0, 0, 1, 0x65, 0x88}, bytes.Repeat([]byte{0x11}, 20)...)
	slice := []byte{0, 0, 0, 1, 0x41, 0x9a, 0x22}
	submitAll(t, s, [][]byte{idr, slice})
	shutdownWithin(t, s, 5*time.Second)

	eng := factory.Last()
	inputs := dataInputs(eng.Inputs())
	if len(inputs) != 4 {
		t.Fatalf("expected 3 chunks for the IDR unit and 1 for the slice, got %d", len(inputs))
	}
	if want := engine.FlagKeyFrame | engine.FlagCodecConfig; inputs[0].Flags != want {
		t.Fatalf("first chunk flags = %d, want %d", inputs[0].Flags, want)
	}
	for i := 1; i < 3; i++ {
		if inputs[i].Flags != 0 {
			t.Fatalf("continuation chunk %d carries flags %d", i, inputs[i].Flags)
		}
	}
	if inputs[3].PTS != 1 || inputs[3].Flags != 0 {
		t.Fatalf("unexpected slice input %+v", inputs[3])
	}
	if got := eng.Stats().KeyFrames; got != 1 {
		t.Fatalf("expected 1 key frame at the engine, got %d", got)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	factory := sim.NewFactory(simOptions())
	s := newTestSession(t, factory.New)
	target := newTarget("a")
	if err := s.SetRenderTarget(target); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Shutdown()
			if s.State() != StateTerminated {
				t.Errorf("Shutdown returned in state %s", s.State())
			}
		}()
	}
	wg.Wait()
	s.Shutdown()

	if calls := factory.Last().DestroyCalls(); calls != 1 {
		t.Fatalf("engine destroyed %d times", calls)
	}
	if target.released.Load() != 1 {
		t.Fatalf("target released %d times", target.released.Load())
	}
}

func TestShutdownWithoutEngine(t *testing.T) {
	factory := sim.NewFactory(simOptions())
	s := newTestSession(t, factory.New)
	if err := s.Submit([]byte("queued")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	shutdownWithin(t, s, time.Second)
	if s.State() != StateTerminated {
		t.Fatalf("expected terminated, got %s", s.State())
	}
	if len(factory.Created()) != 0 {
		t.Fatal("shutdown must not create an engine")
	}
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	s := newTestSession(t, sim.NewFactory(simOptions()).New)
	s.Shutdown()
	if err := s.Submit([]byte("x")); !errors.Is(err, services.ErrSessionClosed) {
		t.Fatalf("Submit after shutdown: %v", err)
	}
	target := newTarget("late")
	if err := s.SetRenderTarget(target); !errors.Is(err, services.ErrSessionClosed) {
		t.Fatalf("SetRenderTarget after shutdown: %v", err)
	}
	if target.acquired.Load() != 0 {
		t.Fatal("closed session must not acquire a target")
	}
}

func TestTargetSwapsKeepOneEngine(t *testing.T) {
	factory := sim.NewFactory(simOptions())
	s := newTestSession(t, factory.New)
	targets := []*countingTarget{newTarget("a"), newTarget("b"), newTarget("c")}

	for i, target := range targets {
		if err := s.SetRenderTarget(target); err != nil {
			t.Fatalf("SetRenderTarget %d: %v", i, err)
		}
		submitAll(t, s, [][]byte{[]byte(fmt.Sprintf("frame-%d", i))})
	}
	if err := s.SetRenderTarget(nil); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := s.SetRenderTarget(targets[0]); err != nil {
		t.Fatalf("reattach: %v", err)
	}
	shutdownWithin(t, s, 5*time.Second)

	if n := len(factory.Created()); n != 1 {
		t.Fatalf("expected one engine across swaps, got %d", n)
	}
	for _, target := range targets {
		if !target.balanced() {
			t.Fatalf("target %s acquired %d released %d", target.name, target.acquired.Load(), target.released.Load())
		}
	}
	if got := s.Stats().TargetSwaps; got != 4 {
		t.Fatalf("expected 4 swaps, got %d", got)
	}
}

func TestUnsupportedRebindIsDistinct(t *testing.T) {
	opts := simOptions()
	opts.LiveRebind = false
	factory := sim.NewFactory(opts)
	s := newTestSession(t, factory.New)
	first := newTarget("first")
	if err := s.SetRenderTarget(first); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}

	second := newTarget("second")
	err := s.SetRenderTarget(second)
	if !errors.Is(err, services.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if errors.Is(err, services.ErrEngineConfig) {
		t.Fatal("unsupported rebind must not be reported as an engine config error")
	}
	if !second.balanced() {
		t.Fatal("rejected target binding leaked")
	}
	if factory.Last().Target() != first {
		t.Fatal("previous target must stay bound")
	}
	if s.State() != StateRunning {
		t.Fatalf("expected running, got %s", s.State())
	}
	shutdownWithin(t, s, 5*time.Second)
	if first.released.Load() != 1 {
		t.Fatalf("first target released %d times", first.released.Load())
	}
}

func TestEngineSetupFailureLeavesSessionConfigured(t *testing.T) {
	for _, stage := range []string{"configure", "start"} {
		t.Run(stage, func(t *testing.T) {
			var failing *scriptedEngine
			good := sim.NewFactory(simOptions())
			calls := 0
			factory := func(c engine.Codec) (engine.Engine, error) {
				calls++
				if calls == 1 {
					var f engine.Factory
					failing, f = newScripted(t, func(e *scriptedEngine) {
						if stage == "configure" {
							e.configureErr = errors.New("bad format")
						} else {
							e.startErr = errors.New("codec busy")
						}
					})
					return f(c)
				}
				return good.New(c)
			}
			s := newTestSession(t, factory)
			target := newTarget("a")

			err := s.SetRenderTarget(target)
			if !errors.Is(err, services.ErrEngineConfig) {
				t.Fatalf("expected ErrEngineConfig, got %v", err)
			}
			if s.State() != StateConfigured {
				t.Fatalf("expected configured, got %s", s.State())
			}
			if !target.balanced() {
				t.Fatal("target binding leaked after failed setup")
			}
			if !failing.Destroyed() {
				t.Fatal("partially configured engine was not destroyed")
			}
			if failing.outputCalls.Load() != 0 {
				t.Fatal("drain worker ran against a failed engine")
			}

			if err := s.Submit([]byte("after retry")); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if err := s.SetRenderTarget(target); err != nil {
				t.Fatalf("retry SetRenderTarget: %v", err)
			}
			shutdownWithin(t, s, 5*time.Second)
			if got := dataInputs(good.Last().Inputs()); len(got) != 1 {
				t.Fatalf("expected queued unit to survive failed setup, got %d inputs", len(got))
			}
		})
	}
}

func TestNilInitialTargetRejected(t *testing.T) {
	factory := sim.NewFactory(simOptions())
	s := newTestSession(t, factory.New)
	if err := s.SetRenderTarget(nil); !errors.Is(err, services.ErrEngineConfig) {
		t.Fatalf("expected ErrEngineConfig, got %v", err)
	}
	if len(factory.Created()) != 0 {
		t.Fatal("engine created without a target")
	}
}

func TestSlotTimeoutAbandonsRemainder(t *testing.T) {
	scripted, factory := newScripted(t, func(e *scriptedEngine) {
		e.acquireInput = func(time.Duration) (engine.InputSlot, error) {
			return engine.InputSlot{}, engine.ErrTimeout
		}
	})
	s := newTestSession(t, factory, WithEOSTimeout(10*time.Millisecond))
	if err := s.SetRenderTarget(newTarget("a")); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}
	submitAll(t, s, [][]byte{[]byte("one"), []byte("two"), []byte("three")})
	shutdownWithin(t, s, 5*time.Second)

	stats := s.Stats()
	if stats.Abandoned != 3 || stats.SlotTimeouts != 3 {
		t.Fatalf("expected 3 abandoned units, got %+v", stats)
	}
	// The end-of-stream marker never got a slot, so it consumed no pts.
	if stats.NextPTS != 3 {
		t.Fatalf("expected pts to advance per unit, next pts %d", stats.NextPTS)
	}
	if len(scripted.Inputs()) != 0 {
		t.Fatal("no data should reach the engine")
	}
}

func TestEnginePanicIsContained(t *testing.T) {
	_, factory := newScripted(t, func(e *scriptedEngine) {
		e.submitInput = func(engine.InputSlot, int, uint64, engine.BufferFlags) error {
			panic("driver fault")
		}
	})
	s := newTestSession(t, factory, WithEOSTimeout(10*time.Millisecond))
	if err := s.SetRenderTarget(newTarget("a")); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}
	submitAll(t, s, [][]byte{[]byte("boom")})
	shutdownWithin(t, s, 5*time.Second)
	if s.Stats().Abandoned != 1 {
		t.Fatalf("expected panicking unit to be abandoned, got %+v", s.Stats())
	}
}

func TestDrainExitsOnceOnOutputError(t *testing.T) {
	scripted, factory := newScripted(t, func(e *scriptedEngine) {
		e.acquireOut = func(time.Duration) (engine.OutputEvent, error) {
			return engine.OutputEvent{}, errors.New("codec fault")
		}
	})
	buf := &syncBuffer{}
	s, err := New(bufferLogger(buf), 640, 480, engine.CodecH264, factory, WithEOSTimeout(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SetRenderTarget(newTarget("a")); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}
	submitAll(t, s, [][]byte{[]byte("frame")})
	shutdownWithin(t, s, 5*time.Second)

	if calls := scripted.outputCalls.Load(); calls != 1 {
		t.Fatalf("drain polled %d times after a fatal error", calls)
	}
	if n := buf.count("drain_output_error"); n != 1 {
		t.Fatalf("expected one drain error record, got %d", n)
	}
	if s.State() != StateTerminated {
		t.Fatalf("expected terminated, got %s", s.State())
	}
}

func TestRenderOnlyNonEmptyOutput(t *testing.T) {
	factory := sim.NewFactory(simOptions())
	s := newTestSession(t, factory.New)
	target := newTarget("a")
	if err := s.SetRenderTarget(target); err != nil {
		t.Fatalf("SetRenderTarget: %v", err)
	}
	submitAll(t, s, [][]byte{[]byte("a"), []byte("b")})
	shutdownWithin(t, s, 5*time.Second)

	stats := s.Stats()
	// Two frames plus the empty end-of-stream event.
	if stats.FramesReleased != 3 || stats.FramesRendered != 2 {
		t.Fatalf("unexpected release counters %+v", stats)
	}
	if target.presented() != 2 {
		t.Fatalf("expected 2 presented frames, got %d", target.presented())
	}
}

func TestConcurrentStressShutdown(t *testing.T) {
	for round := 0; round < 5; round++ {
		factory := sim.NewFactory(sim.Options{InputSlots: 2, SlotSize: 8, LiveRebind: true})
		s := newTestSession(t, factory.New, WithInputTimeout(20*time.Millisecond))
		targets := []*countingTarget{newTarget("a"), newTarget("b")}
		if err := s.SetRenderTarget(targets[0]); err != nil {
			t.Fatalf("SetRenderTarget: %v", err)
		}

		var wg sync.WaitGroup
		stop := make(chan struct{})
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func(seed int64) {
				defer wg.Done()
				rng := rand.New(rand.NewSource(seed))
				for {
					select {
					case <-stop:
						return
					default:
					}
					err := s.Submit(make([]byte, 1+rng.Intn(40)))
					if errors.Is(err, services.ErrSessionClosed) {
						return
					}
					if err != nil && !errors.Is(err, services.ErrQueueFull) {
						t.Errorf("unexpected submit error: %v", err)
						return
					}
				}
			}(int64(round*10 + p))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				err := s.SetRenderTarget(targets[i%2])
				if errors.Is(err, services.ErrSessionClosed) {
					return
				}
				if err != nil {
					t.Errorf("swap: %v", err)
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()

		time.Sleep(time.Duration(5+rand.Intn(20)) * time.Millisecond)
		shutdownWithin(t, s, 10*time.Second)
		close(stop)
		wg.Wait()

		for _, target := range targets {
			if !target.balanced() {
				t.Fatalf("round %d: target %s acquired %d released %d", round, target.name, target.acquired.Load(), target.released.Load())
			}
		}
		if factory.Last().DestroyCalls() != 1 {
			t.Fatalf("round %d: engine destroyed %d times", round, factory.Last().DestroyCalls())
		}
		var last uint64
		for i, in := range factory.Last().Inputs() {
			if i > 0 && in.PTS < last {
				t.Fatalf("round %d: pts went back from %d to %d", round, last, in.PTS)
			}
			last = in.PTS
		}
	}
}
