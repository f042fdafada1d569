package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

// Output formats
const (
	FormatWAV = "wav"
	FormatAAC = "aac"
)

// SampleRates lists the rates offered by both front-ends.
var SampleRates = []int{44100, 48000, 96000}

type Config struct {
	Audio    AudioConfig  `json:"audio"`
	Output   OutputConfig `json:"output"`
	LogLevel string       `json:"log_level"`
}

type AudioConfig struct {
	// Device is matched by name; indices shift when hardware is replugged.
	// Empty means the system default input device.
	Device     string `json:"device"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type OutputConfig struct {
	Format   string `json:"format"` // "wav" or "aac"
	Bitrate  string `json:"bitrate"`
	Dir      string `json:"dir"` // default directory for recordings; empty means cwd
	CopyPath bool   `json:"copy_path"`
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	path := configPath()

	cfg := &Config{
		Audio: AudioConfig{
			Device:     "",
			SampleRate: 48000,
			Channels:   2,
		},
		Output: OutputConfig{
			Format:   FormatAAC,
			Bitrate:  "192k",
			Dir:      "",
			CopyPath: false,
		},
		LogLevel: "info",
	}

	// Load existing config if it exists
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := configPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "audiorec", "config.json")
}
