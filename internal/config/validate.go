package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDecoder(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validatePlayback()
}

func (c *Config) validateDecoder() error {
	switch c.Decoder.Codec {
	case "h264", "h265":
	default:
		return fmt.Errorf("decoder.codec must be h264 or h265, got %q", c.Decoder.Codec)
	}
	if c.Decoder.Width <= 0 || c.Decoder.Height <= 0 {
		return fmt.Errorf("decoder.width and decoder.height must be positive, got %dx%d", c.Decoder.Width, c.Decoder.Height)
	}
	if c.Decoder.QueueCapacity <= 0 {
		return errors.New("decoder.queue_capacity must be positive")
	}
	if c.Decoder.InputTimeoutMS <= 0 {
		return errors.New("decoder.input_timeout_ms must be positive")
	}
	if c.Decoder.OutputTimeoutMS <= 0 {
		return errors.New("decoder.output_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.InputSlots <= 0 {
		return errors.New("engine.input_slots must be positive")
	}
	if c.Engine.SlotSize <= 0 {
		return errors.New("engine.slot_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	for component, level := range c.Logging.ComponentOverrides {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.component_overrides.%s: unsupported level %q", component, level)
		}
	}
	return nil
}

func (c *Config) validatePlayback() error {
	if c.Playback.FPS < 0 {
		return errors.New("playback.fps must not be negative (0 disables pacing)")
	}
	if c.Playback.SubmitRetries < 0 {
		return errors.New("playback.submit_retries must not be negative")
	}
	if c.Playback.RetryBackoffMS < 0 {
		return errors.New("playback.retry_backoff_ms must not be negative")
	}
	return nil
}
