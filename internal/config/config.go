package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Decoder contains decoder session settings.
type Decoder struct {
	Codec           string `toml:"codec"`
	Width           int32  `toml:"width"`
	Height          int32  `toml:"height"`
	QueueCapacity   int    `toml:"queue_capacity"`
	InputTimeoutMS  int    `toml:"input_timeout_ms"`
	OutputTimeoutMS int    `toml:"output_timeout_ms"`
	EOSTimeoutMS    int    `toml:"eos_timeout_ms"`
}

// Engine contains settings for the simulated software engine used by the CLI.
type Engine struct {
	InputSlots int  `toml:"input_slots"`
	SlotSize   int  `toml:"slot_size"`
	LiveRebind bool `toml:"live_rebind"`
}

// Paths contains directory and file locations.
type Paths struct {
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
	// RetentionDays bounds how long daily log files stay in paths.log_dir.
	// Zero keeps them forever.
	RetentionDays int `toml:"retention_days"`
}

// Playback contains producer pacing for the play command.
type Playback struct {
	FPS            int `toml:"fps"`
	SubmitRetries  int `toml:"submit_retries"`
	RetryBackoffMS int `toml:"retry_backoff_ms"`
}

// Config encapsulates all configuration values for vidbridge.
//
// Configuration sections by subsystem:
//   - Decoder: session geometry, codec, queue capacity, engine timeouts
//   - Engine: simulated engine slot layout and live rebind capability
//   - Paths: log directory and run history database
//   - Logging: log format, level, and per-component overrides
//   - Playback: producer pacing and queue-full retry budget
type Config struct {
	Decoder  Decoder  `toml:"decoder"`
	Engine   Engine   `toml:"engine"`
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
	Playback Playback `toml:"playback"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidbridge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory and the history database parent.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if strings.TrimSpace(c.Paths.HistoryDB) != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// InputTimeout returns the per-slot acquisition timeout.
func (c *Config) InputTimeout() time.Duration {
	return time.Duration(c.Decoder.InputTimeoutMS) * time.Millisecond
}

// OutputTimeout returns the drain poll interval.
func (c *Config) OutputTimeout() time.Duration {
	return time.Duration(c.Decoder.OutputTimeoutMS) * time.Millisecond
}

// EOSTimeout returns how long shutdown waits for a slot to carry the end-of-stream marker.
func (c *Config) EOSTimeout() time.Duration {
	return time.Duration(c.Decoder.EOSTimeoutMS) * time.Millisecond
}

// RetryBackoff returns the pause between queue-full retries in the play command.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Playback.RetryBackoffMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
