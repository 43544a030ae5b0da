package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// EnvConfig names an environment variable pointing at a config file. It is
// consulted when -config is not given.
const EnvConfig = "ARCLOUD_CONFIG"

// Load builds the effective configuration: defaults, then the config file,
// then command-line flags. The result is validated and cfg.Path records the
// file that was read, if any.
func Load() (*Config, error) {
	cfg := Default()

	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
		cfg.Path = path
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveConfigPath picks the config file: -config, then $ARCLOUD_CONFIG,
// then the standard locations. An explicit path that does not exist is an
// error; a missing file in a standard location is not.
func resolveConfigPath() (string, error) {
	for _, explicit := range []string{ConfigPath(), os.Getenv(EnvConfig)} {
		if explicit == "" {
			continue
		}
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}
	return findConfigFile(), nil
}

// findConfigFile looks for config.yaml in the working directory, then in ConfigDir.
func findConfigFile() string {
	for _, path := range []string{
		"config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	} {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	const app = "arcloud"
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "ARCloud")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "ARCloud")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, app)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", app)
	}
}

// loadFromFile merges a YAML file into cfg. Keys that match no setting are
// rejected so a misspelt option does not silently fall back to its default.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
