// Package config loads the hostbridge YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete hostbridge configuration
type Config struct {
	Debug    bool          `yaml:"debug"`
	LogLevel string        `yaml:"log_level"` // debug, info, warning, error
	Queue    QueueConfig   `yaml:"queue"`
	Bridge   BridgeConfig  `yaml:"bridge"`
	Audio    AudioConfig   `yaml:"audio"`
	Host     HostConfig    `yaml:"host"`
	Journal  JournalConfig `yaml:"journal"`
}

// QueueConfig sizes the host event queue
type QueueConfig struct {
	Capacity int `yaml:"capacity"` // max pending events before Inject fails
}

// BridgeConfig contains the handshake timeouts
type BridgeConfig struct {
	TimerTimeout time.Duration `yaml:"timer_timeout"` // max time the timer thread waits for the host
	MixerTimeout time.Duration `yaml:"mixer_timeout"` // 0 = one audio buffer period
}

// AudioConfig describes the software audio device
type AudioConfig struct {
	SampleRate int  `yaml:"sample_rate"`
	Channels   int  `yaml:"channels"`
	Samples    int  `yaml:"samples"` // frames per buffer
	Enabled    bool `yaml:"enabled"`
}

// HostConfig contains host loop settings
type HostConfig struct {
	TickRate int `yaml:"tick_rate"` // ticks per second
}

// JournalConfig contains the SQLite journal settings
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Queue: QueueConfig{
			Capacity: 1024,
		},
		Bridge: BridgeConfig{
			TimerTimeout: 250 * time.Millisecond,
		},
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   2,
			Samples:    1024,
			Enabled:    true,
		},
		Host: HostConfig{
			TickRate: 64,
		},
		Journal: JournalConfig{
			Enabled:       false,
			Path:          "data/hostbridge.db",
			FlushInterval: time.Second,
		},
	}
}

// Load reads and parses a YAML configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFirst tries each path in order and returns the first config that loads.
// Missing files are skipped; a file that exists but fails to parse is an error.
// When no file exists the defaults are returned together with the empty path.
func LoadFirst(paths ...string) (*Config, string, error) {
	for _, path := range paths {
		cfg, err := Load(path)
		if err == nil {
			return cfg, path, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return nil, path, err
	}
	return Default(), "", nil
}
