package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "aiopt"
	configFileName = "config.yaml"

	// BackendEnv overrides the backend URL from the config file
	BackendEnv = "AIOPT_BACKEND_URL"

	// DefaultBackendURL is used when nothing else is configured
	DefaultBackendURL = "http://localhost:8080/api"
)

// Config represents the user's CLI configuration stored in ~/.config/aiopt/config.yaml
type Config struct {
	BackendURL string `yaml:"backend_url"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName, configFileName), nil
}

// LoadFile reads a config file; a missing file is an empty config
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// SaveFile writes the configuration, creating the directory if needed
func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveBackend picks the backend URL: the config file at path, then
// AIOPT_BACKEND_URL, then the --backend flag, each overriding the last.
// An empty path skips the file.
func ResolveBackend(path, flagValue string) (string, error) {
	backend := DefaultBackendURL

	if path != "" {
		cfg, err := LoadFile(path)
		if err != nil {
			return "", err
		}
		if v := strings.TrimSpace(cfg.BackendURL); v != "" {
			backend = v
		}
	}

	if v := strings.TrimSpace(os.Getenv(BackendEnv)); v != "" {
		backend = v
	}

	if v := strings.TrimSpace(flagValue); v != "" {
		backend = v
	}

	return strings.TrimRight(backend, "/"), nil
}
