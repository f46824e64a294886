package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tracsync/tracsync/internal/sync"
	"github.com/tracsync/tracsync/internal/tracsdk"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".config", "tracsync", "config.yml")
	LocalConfigPath   = filepath.Join(".tracsync", "config.yml")
)

var ErrNoConfig = errors.New("config: no configuration file found")

// Logging holds the process-wide log settings.
type Logging struct {
	Level string `yaml:"level"`
}

// Config is the full on-disk configuration: one Trac connection plus any
// number of named sync profiles.
type Config struct {
	Trac                tracsdk.Config           `yaml:"trac"`
	Sync                map[string]*sync.Profile `yaml:"sync"`
	Logging             Logging                  `yaml:"logging"`
	MaxParallelRequests int64                    `yaml:"max_parallel_requests"`
	Path                string                   `yaml:"-"`
}

// Load reads and validates a config file. An empty path walks the discovery
// order: ./.tracsync/config.yml, then the user config dir.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := discover()
		if err != nil {
			return nil, err
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func discover() (string, error) {
	for _, candidate := range []string{LocalConfigPath, DefaultConfigPath} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ErrNoConfig
}

// applyEnv lets credentials live outside the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TRACSYNC_URL"); v != "" {
		c.Trac.URL = v
	}
	if v := os.Getenv("TRACSYNC_USERNAME"); v != "" {
		c.Trac.Username = v
	}
	if v := os.Getenv("TRACSYNC_PASSWORD"); v != "" {
		c.Trac.Password = v
	}
}

// Validate fails fast on any profile or connection problem before I/O
// starts. Profile names are filled in from the map keys.
func (c *Config) Validate() error {
	if c.Trac.URL == "" {
		return errors.New("config: trac.url is required (or TRACSYNC_URL)")
	}
	if c.MaxParallelRequests < 0 {
		return errors.New("config: max_parallel_requests must be positive")
	}
	if c.MaxParallelRequests == 0 {
		c.MaxParallelRequests = 4
	}
	if len(c.Sync) == 0 {
		return errors.New("config: at least one sync profile is required")
	}
	for name, profile := range c.Sync {
		if profile == nil {
			return fmt.Errorf("config: profile %q is empty", name)
		}
		profile.Name = name
		profile.ApplyDefaults()
		if err := profile.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// Profile returns a named profile, or the only one when name is empty.
func (c *Config) Profile(name string) (*sync.Profile, error) {
	if name == "" {
		if len(c.Sync) == 1 {
			for _, profile := range c.Sync {
				return profile, nil
			}
		}
		return nil, fmt.Errorf("config: profile name required, have %d profiles", len(c.Sync))
	}
	profile, ok := c.Sync[name]
	if !ok {
		return nil, fmt.Errorf("config: unknown profile %q", name)
	}
	return profile, nil
}

// ProfileNames lists the configured profile names.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Sync))
	for name := range c.Sync {
		names = append(names, name)
	}
	return names
}
