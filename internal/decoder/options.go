package decoder

import (
	"time"

	"vidbridge/internal/config"
)

const (
	DefaultQueueCapacity = 4
	DefaultInputTimeout  = time.Second
	DefaultOutputTimeout = 100 * time.Millisecond
)

// Option configures optional Session behavior.
type Option func(*options)

type options struct {
	queueCapacity   int
	inputTimeout    time.Duration
	outputTimeout   time.Duration
	eosTimeout      time.Duration
	sessionID       string
	componentLevels map[string]string
}

func defaultOptions() options {
	return options{
		queueCapacity: DefaultQueueCapacity,
		inputTimeout:  DefaultInputTimeout,
		outputTimeout: DefaultOutputTimeout,
		eosTimeout:    DefaultInputTimeout,
	}
}

// WithQueueCapacity sets how many encoded units may wait for the feeder.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.queueCapacity = n }
}

// WithInputTimeout bounds each input slot acquisition made by the feeder.
func WithInputTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.inputTimeout = d
		}
	}
}

// WithOutputTimeout sets the drain's output poll interval.
func WithOutputTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.outputTimeout = d
		}
	}
}

// WithEOSTimeout bounds the slot wait for the end-of-stream marker at shutdown.
func WithEOSTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.eosTimeout = d
		}
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// WithComponentLevels raises log levels for the session, feeder, or drain
// components, keyed by component name.
func WithComponentLevels(levels map[string]string) Option {
	return func(o *options) { o.componentLevels = levels }
}

// OptionsFromConfig maps the [decoder] and [logging] sections onto options.
func OptionsFromConfig(cfg *config.Config) []Option {
	if cfg == nil {
		return nil
	}
	return []Option{
		WithQueueCapacity(cfg.Decoder.QueueCapacity),
		WithInputTimeout(cfg.InputTimeout()),
		WithOutputTimeout(cfg.OutputTimeout()),
		WithEOSTimeout(cfg.EOSTimeout()),
		WithComponentLevels(cfg.Logging.ComponentOverrides),
	}
}
