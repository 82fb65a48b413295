// Package config loads meshbackup settings.
//
// Sources, later ones override earlier: built-in defaults, the YAML file,
// MESHBACKUP_* environment variables and explicit overrides such as CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of environment variables.
const DefaultEnvPrefix = "MESHBACKUP_"

// Config holds all settings.
type Config struct {
	Device DeviceConfig `koanf:"device"`
	Backup BackupConfig `koanf:"backup"`
	Log    LogConfig    `koanf:"log"`
}

// DeviceConfig describes how to reach the radio.
type DeviceConfig struct {
	// Port used when a command gets none.
	Port    string        `koanf:"port"`
	Baud    int           `koanf:"baud"`
	Timeout time.Duration `koanf:"timeout"`
}

type BackupConfig struct {
	// Dir is the root of the per-node backup directories.
	Dir string `koanf:"dir"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the built-in settings as a koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"device": map[string]any{
			"port":    "",
			"baud":    115200,
			"timeout": "30s",
		},
		"backup": map[string]any{
			"dir": ".",
		},
		"log": map[string]any{
			"level":  "warn",
			"format": "text",
		},
	}
}

// DefaultPath returns the configuration file looked up when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "meshbackup", "config.yaml")
}

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file. The file must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverrides applies values on top of every other source. Keys are either nested
// the same way as in Defaults or dotted paths such as "device.port".
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and returns the merged configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path, required := l.filePath, true
	if path == "" {
		path, required = DefaultPath(), false
	}
	if err := l.loadFile(path, required); err != nil {
		return nil, err
	}

	if err := l.loadEnv(); err != nil {
		return nil, err
	}

	if l.overrides != nil {
		if err := l.k.Load(confmap.Provider(l.overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) loadFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if !required {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// loadEnv maps MESHBACKUP_DEVICE_PORT to device.port.
func (l *Loader) loadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}
