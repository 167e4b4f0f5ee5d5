// Package config loads, normalizes, and validates vidbridge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the VIDBRIDGE_LOG_LEVEL environment
// fallback. The Config type centralizes the decoder session geometry and
// timeouts, the simulated engine layout, log routing, and playback pacing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical codec names, and clear validation errors.
package config
