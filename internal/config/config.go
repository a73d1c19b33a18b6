// Package config loads and persists local application settings.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings contains user-adjustable runtime configuration.
type Settings struct {
	MediaDir        string `yaml:"media_dir"`
	ProjectPath     string `yaml:"project_path"`
	APIEndpoint     string `yaml:"api_endpoint"`
	VideoPollSecs   int    `yaml:"video_poll_seconds"`
	FadeMillis      int    `yaml:"fade_millis"`
	FallbackSecs    int    `yaml:"fallback_seconds"`
	ToastExpirySecs int    `yaml:"toast_expiry_seconds"`
}

// Store defines persistence operations for app settings.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// YAMLStore persists settings in a single YAML file on disk.
type YAMLStore struct {
	path string
}

// NewYAMLStore creates a YAML-backed settings store.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// Load reads settings from disk or returns defaults when missing.
func (s *YAMLStore) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Settings{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// Save writes settings as YAML and creates parent directories.
func (s *YAMLStore) Save(cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Default returns baseline local configuration for first launch.
func Default() Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	base := filepath.Join(homeDir, ".storyboard-studio")
	return Settings{
		MediaDir:        filepath.Join(base, "media"),
		ProjectPath:     filepath.Join(base, "project.json"),
		APIEndpoint:     "",
		VideoPollSecs:   8,
		FadeMillis:      600,
		FallbackSecs:    6,
		ToastExpirySecs: 4,
	}
}
