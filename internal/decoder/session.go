package decoder

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"vidbridge/internal/engine"
	"vidbridge/internal/logging"
	"vidbridge/internal/services"
)

const component = "decoder"

// Session bridges a producer of encoded units to a decoder engine and its
// render target.
type Session struct {
	id      string
	codec   engine.Codec
	width   int32
	height  int32
	factory engine.Factory
	opts    options

	logger    *slog.Logger
	feederLog *slog.Logger
	drainLog  *slog.Logger

	// handleMu serializes engine handle changes (first bind, rebind) against
	// Shutdown. It is always taken before mu.
	handleMu sync.Mutex

	mu       sync.Mutex
	cond     *sync.Cond
	state    State
	shutdown bool
	nextPTS  uint64
	queue    *submissionQueue
	engine   engine.Engine
	target   engine.Target
	stats    Stats

	feeder sync.WaitGroup
	drain  sync.WaitGroup
}

// New returns a Configured session for the given stream geometry and codec.
// The engine is created on the first SetRenderTarget call.
func New(logger *slog.Logger, width, height int32, codec engine.Codec, factory engine.Factory, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	switch {
	case factory == nil:
		return nil, services.Wrap(services.ErrResource, component, "new session", "engine factory is nil", nil)
	case o.queueCapacity <= 0:
		return nil, services.Wrap(services.ErrResource, component, "new session", fmt.Sprintf("queue capacity %d", o.queueCapacity), nil)
	case width <= 0 || height <= 0:
		return nil, services.Wrap(services.ErrResource, component, "new session", fmt.Sprintf("invalid dimensions %dx%d", width, height), nil)
	case !codec.Valid():
		return nil, services.Wrap(services.ErrResource, component, "new session", fmt.Sprintf("unsupported %s", codec), nil)
	}

	id := o.sessionID
	if id == "" {
		id = uuid.NewString()
	}
	base := logging.WithSession(logger, id)

	s := &Session{
		id:        id,
		codec:     codec,
		width:     width,
		height:    height,
		factory:   factory,
		opts:      o,
		logger:    logging.ForComponent(base, "session", o.componentLevels),
		feederLog: logging.ForComponent(base, "feeder", o.componentLevels),
		drainLog:  logging.ForComponent(base, "drain", o.componentLevels),
		state:     StateUninitialized,
		queue:     newSubmissionQueue(o.queueCapacity),
	}
	s.cond = sync.NewCond(&s.mu)
	s.state = StateConfigured

	s.logger.Debug("decoder session configured",
		logging.String(logging.FieldCodec, codec.String()),
		logging.Int("width", int(width)),
		logging.Int("height", int(height)),
		logging.Int("queue_capacity", o.queueCapacity),
	)
	return s, nil
}

// ID returns the session identifier stamped on its log records.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit copies data into the submission queue and wakes the feeder. It fails
// immediately with services.ErrQueueFull when the queue is at capacity, and
// with services.ErrSessionClosed once Shutdown has begun.
func (s *Session) Submit(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfigured && s.state != StateRunning {
		return services.Wrap(services.ErrSessionClosed, component, "submit", s.state.String(), nil)
	}
	if s.queue.full() {
		s.stats.Rejected++
		return services.Wrap(services.ErrQueueFull, component, "submit", fmt.Sprintf("%d units pending", s.queue.len()), nil)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.queue.push(unit{data: buf})
	s.stats.Submitted++
	s.stats.InputBytes += uint64(len(data))
	s.cond.Signal()
	return nil
}

// Shutdown stops the session and blocks until both workers have exited and
// the engine and target have been released. It may be called any number of
// times from any goroutine; later callers wait for the first to finish.
func (s *Session) Shutdown() {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateShuttingDown
	s.shutdown = true
	eng := s.engine
	pending := s.queue.len()
	s.cond.Broadcast()
	s.mu.Unlock()

	s.logger.Debug("decoder session shutting down", logging.Int("pending_units", pending))

	s.feeder.Wait()
	if eng != nil {
		s.pushEndOfStream(eng)
		if err := guard(eng.Stop); err != nil {
			logging.WarnWithContext(s.logger, "engine stop failed", "engine_stop_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "engine resources are released without a clean stop"),
			)
		}
	}
	s.drain.Wait()
	if eng != nil {
		if err := guard(eng.Destroy); err != nil {
			logging.WarnWithContext(s.logger, "engine destroy failed", "engine_destroy_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "engine resources may leak"),
			)
		}
	}

	s.mu.Lock()
	target := s.target
	s.target = nil
	s.engine = nil
	s.mu.Unlock()
	if target != nil {
		target.Release()
	}

	s.mu.Lock()
	s.state = StateTerminated
	stats := s.statsLocked()
	s.mu.Unlock()

	s.logger.Info("decoder session terminated",
		logging.Uint64("submitted", stats.Submitted),
		logging.Uint64("rendered", stats.FramesRendered),
		logging.Uint64("abandoned", stats.Abandoned),
		logging.Uint64("rejected", stats.Rejected),
	)
}

// pushEndOfStream submits an empty end-of-stream slot so the drain can exit on
// the marker instead of on its poll timeout. Failure only degrades shutdown.
func (s *Session) pushEndOfStream(eng engine.Engine) {
	err := guard(func() error {
		slot, err := eng.AcquireInputSlot(s.opts.eosTimeout)
		if err != nil {
			return err
		}
		s.mu.Lock()
		pts := s.nextPTS
		s.nextPTS++
		s.mu.Unlock()
		return eng.SubmitInputSlot(slot, 0, pts, engine.FlagEndOfStream)
	})
	if err != nil {
		logging.WarnWithContext(s.logger, "end-of-stream marker not delivered", "eos_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "drain exits on its poll timeout instead"),
		)
	}
}

// guard runs fn, converting a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return fn()
}
