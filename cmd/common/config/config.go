// Package config provides configuration loading for auxroom.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config represents the auxroom configuration file structure.
type Config struct {
	// ServerURL is the base URL of the room backend, e.g. "http://localhost:8080".
	ServerURL string `json:"server_url,omitempty"`

	// DesktopNotifications enables OS notifications for urgent events,
	// such as losing the sync channel mid-session.
	DesktopNotifications bool `json:"desktop_notifications"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:            "http://localhost:8080",
		DesktopNotifications: true,
	}
}

// ConfigDir returns the auxroom config directory (~/.auxroom).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".auxroom")
}

// ConfigPath returns the path to the config file (~/.auxroom/config.json).
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads the config from ~/.auxroom/config.json.
// Returns default config if the file doesn't exist. The AUXROOM_SERVER
// environment variable overrides the configured server URL.
func Load() (*Config, error) {
	cfg, err := loadFile(ConfigPath())
	if err != nil {
		return nil, err
	}
	if server := os.Getenv("AUXROOM_SERVER"); server != "" {
		cfg.ServerURL = server
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if config.ServerURL == "" {
		config.ServerURL = DefaultConfig().ServerURL
	}

	return &config, nil
}

// Save saves the config to ~/.auxroom/config.json.
func Save(config *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
