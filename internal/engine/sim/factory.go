package sim

import (
	"sync"

	"vidbridge/internal/engine"
)

// Factory builds simulated engines and remembers each one it created.
type Factory struct {
	opts Options

	mu      sync.Mutex
	created []*Engine
}

// NewFactory returns a factory producing engines with opts.
func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts}
}

// New satisfies engine.Factory.
func (f *Factory) New(codec engine.Codec) (engine.Engine, error) {
	e, err := New(codec, f.opts)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.created = append(f.created, e)
	f.mu.Unlock()
	return e, nil
}

// Created returns the engines built so far.
func (f *Factory) Created() []*Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Engine, len(f.created))
	copy(out, f.created)
	return out
}

// Last returns the most recently created engine, or nil.
func (f *Factory) Last() *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}
