package decoder

import (
	"errors"

	"vidbridge/internal/engine"
	"vidbridge/internal/logging"
	"vidbridge/internal/services"
)

// SetRenderTarget binds target to the session. The first call creates,
// configures and starts the engine and spawns the workers; later calls swap
// the target on the running engine. A nil target detaches output on a running
// session and is rejected before the engine exists.
//
// Engines that cannot swap live report services.ErrUnsupported; every other
// engine failure is services.ErrEngineConfig. The previously bound target
// stays bound when a swap fails.
func (s *Session) SetRenderTarget(target engine.Target) error {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	s.mu.Lock()
	state := s.state
	eng := s.engine
	s.mu.Unlock()

	if state.closed() {
		return services.Wrap(services.ErrSessionClosed, component, "set render target", state.String(), nil)
	}
	if eng == nil {
		return s.startEngine(target)
	}
	return s.swapTarget(eng, target)
}

func (s *Session) startEngine(target engine.Target) error {
	if target == nil {
		return services.Wrap(services.ErrEngineConfig, component, "set render target", "initial render target is nil", nil)
	}
	if err := target.Acquire(); err != nil {
		return services.Wrap(services.ErrEngineConfig, component, "set render target", "acquire "+target.Name(), err)
	}

	var eng engine.Engine
	err := guard(func() error {
		var err error
		eng, err = s.factory(s.codec)
		return err
	})
	if err == nil && eng == nil {
		err = errors.New("factory returned no engine")
	}
	if err != nil {
		target.Release()
		return services.Wrap(services.ErrEngineConfig, component, "create engine", s.codec.MIME(), err)
	}

	fail := func(operation string, cause error) error {
		if derr := guard(eng.Destroy); derr != nil {
			s.logger.Debug("destroy after failed setup", logging.Error(derr))
		}
		target.Release()
		return services.Wrap(services.ErrEngineConfig, component, operation, s.codec.MIME(), cause)
	}

	format := engine.Format{MIME: s.codec.MIME(), Width: s.width, Height: s.height}
	if err := guard(func() error { return eng.Configure(format) }); err != nil {
		return fail("configure engine", err)
	}
	if err := guard(func() error { return eng.BindTarget(target) }); err != nil {
		return fail("bind render target", err)
	}
	if err := guard(eng.Start); err != nil {
		return fail("start engine", err)
	}

	s.mu.Lock()
	s.engine = eng
	s.target = target
	s.state = StateRunning
	s.feeder.Add(1)
	s.drain.Add(1)
	s.mu.Unlock()

	go s.runFeeder(eng)
	go s.runDrain(eng)

	s.logger.Info("decoder session running",
		logging.String(logging.FieldCodec, s.codec.String()),
		logging.String(logging.FieldTarget, target.Name()),
		logging.Int("width", int(s.width)),
		logging.Int("height", int(s.height)),
	)
	return nil
}

func (s *Session) swapTarget(eng engine.Engine, target engine.Target) error {
	name := "none"
	if target != nil {
		name = target.Name()
		if err := target.Acquire(); err != nil {
			return services.Wrap(services.ErrEngineConfig, component, "set render target", "acquire "+name, err)
		}
	}

	if err := guard(func() error { return eng.RebindTarget(target) }); err != nil {
		if target != nil {
			target.Release()
		}
		if errors.Is(err, engine.ErrUnsupported) {
			return services.Wrap(services.ErrUnsupported, component, "set render target", "engine cannot swap targets while running", err)
		}
		return services.Wrap(services.ErrEngineConfig, component, "set render target", "rebind "+name, err)
	}

	s.mu.Lock()
	previous := s.target
	s.target = target
	s.stats.TargetSwaps++
	s.mu.Unlock()
	if previous != nil {
		previous.Release()
	}

	s.logger.Info("render target swapped", logging.String(logging.FieldTarget, name))
	return nil
}
