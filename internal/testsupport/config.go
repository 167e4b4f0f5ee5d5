package testsupport

import (
	"path/filepath"
	"testing"

	"vidbridge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "state", "history.db")
	cfgVal.Playback.FPS = 0
	cfgVal.Playback.RetryBackoffMS = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithQueueCapacity overrides decoder.queue_capacity.
func WithQueueCapacity(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decoder.QueueCapacity = n
	}
}

// WithLiveRebind toggles engine.live_rebind.
func WithLiveRebind(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.LiveRebind = enabled
	}
}

// WithGeometry sets the decoder frame size.
func WithGeometry(width, height int32) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decoder.Width = width
		b.cfg.Decoder.Height = height
	}
}

// path joins elem under the test temp root.
func (b *configBuilder) path(elem ...string) string {
	return filepath.Join(append([]string{b.baseDir}, elem...)...)
}

// WithLogDir points the log directory at a named subdirectory of the test root.
func WithLogDir(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.LogDir = b.path(name)
	}
}
