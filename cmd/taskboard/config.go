package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultURL = "http://localhost:8080"

// Config is read from config.yaml in the config dir, TASKBOARD_* variables
// and the global flags, later sources winning.
type Config struct {
	URL      string `mapstructure:"url"`
	LogLevel string `mapstructure:"log_level"`
}

// State is what the CLI remembers between runs.
type State struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token,omitempty"`
	Email   string `yaml:"email,omitempty"`
	Project string `yaml:"project,omitempty"`
}

// ConfigDir is $TASKBOARD_HOME, or taskboard/ under the user config dir.
func ConfigDir() (string, error) {
	if dir := os.Getenv("TASKBOARD_HOME"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, "taskboard"), nil
}

func LoadConfig(cmd *cobra.Command, dir string) (*Config, error) {
	v := viper.New()
	v.SetDefault("url", defaultURL)
	v.SetDefault("log_level", "ERROR")

	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		flags := cmd.Root().PersistentFlags()
		if err := v.BindPFlag("url", flags.Lookup("url")); err != nil {
			return nil, err
		}
		if err := v.BindPFlag("log_level", flags.Lookup("log-level")); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &cfg, nil
}

func statePath(dir string) string {
	return filepath.Join(dir, "session.yaml")
}

// LoadState returns an empty state when the file does not exist yet.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return &s, nil
}

// SaveState writes the file readable by the owner only; it holds a token.
func SaveState(path string, s *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
