package config

import (
	"fmt"
	"time"
)

// Limits for values that would make the handshake meaningless
const (
	maxTimerTimeout = 10 * time.Second
	maxTickRate     = 1000
)

// Validate checks if the configuration is valid and fills in zero-valued defaults
func Validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warning, error")
	}

	if cfg.Queue.Capacity < 0 {
		return fmt.Errorf("queue.capacity must be >= 0")
	}
	if cfg.Queue.Capacity == 0 {
		cfg.Queue.Capacity = 1024
	}

	if cfg.Bridge.TimerTimeout < 0 {
		return fmt.Errorf("bridge.timer_timeout must be >= 0")
	}
	if cfg.Bridge.TimerTimeout == 0 {
		cfg.Bridge.TimerTimeout = 250 * time.Millisecond
	}
	if cfg.Bridge.TimerTimeout > maxTimerTimeout {
		return fmt.Errorf("bridge.timer_timeout must be <= %v", maxTimerTimeout)
	}
	if cfg.Bridge.MixerTimeout < 0 {
		return fmt.Errorf("bridge.mixer_timeout must be >= 0")
	}

	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2")
	}
	if cfg.Audio.Samples <= 0 {
		return fmt.Errorf("audio.samples must be > 0")
	}

	if cfg.Host.TickRate <= 0 || cfg.Host.TickRate > maxTickRate {
		return fmt.Errorf("host.tick_rate must be in (0, %d]", maxTickRate)
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	if cfg.Journal.FlushInterval <= 0 {
		cfg.Journal.FlushInterval = time.Second
	}

	return nil
}

// MixerTimeout returns the configured mixer timeout, or one audio buffer
// period when none is set.
func (c *Config) MixerTimeout() time.Duration {
	if c.Bridge.MixerTimeout > 0 {
		return c.Bridge.MixerTimeout
	}
	return time.Duration(c.Audio.Samples) * time.Second / time.Duration(c.Audio.SampleRate)
}

// TickInterval returns the host loop period
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Host.TickRate)
}
