// Package config loads the device daemon's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PresenceConfig selects the physical-presence input.
type PresenceConfig struct {
	// Mode is "gpio" or "auto". Auto-confirm asserts presence
	// immediately and is meant for bench setups only.
	Mode           string `yaml:"mode"`
	GPIOPin        int    `yaml:"gpio_pin"`
	ActiveLow      bool   `yaml:"active_low"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
}

// Config holds device daemon settings.
type Config struct {
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMS int    `yaml:"read_timeout_ms"`
	StorePath     string `yaml:"store_path"`
	TwoFA         bool   `yaml:"twofa"`
	Debug         bool   `yaml:"debug"`

	Presence PresenceConfig `yaml:"presence"`
}

// Default returns the runtime defaults: 2FA on, reference baud and
// read timeout, GPIO 9 active-low (the boot button).
func Default() Config {
	return Config{
		Baud:          115200,
		ReadTimeoutMS: 1000,
		StorePath:     "solana-signer.store",
		TwoFA:         true,
		Presence: PresenceConfig{
			Mode:           "gpio",
			GPIOPin:        9,
			ActiveLow:      true,
			PollIntervalMS: 200,
		},
	}
}

// Load reads the config file at path over the defaults. A missing file
// yields the defaults; a malformed one is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	switch cfg.Presence.Mode {
	case "gpio", "auto":
	default:
		return cfg, fmt.Errorf("config %s: unknown presence mode %q", path, cfg.Presence.Mode)
	}

	return cfg, nil
}
