// Package config loads taxassign settings from TOML files and the
// environment.
//
// Values are resolved in order: base file, environment overlay file,
// environment variables, then defaults for whatever is still unset. The
// result is validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	BaseConfigFile       = "taxassign.toml"
	OverlayConfigPattern = "taxassign.%s.toml"

	EnvTaxassignEnv    = "TAXASSIGN_ENV"
	EnvTaxassignConfig = "TAXASSIGN_CONFIG"
)

// Config is the root configuration.
type Config struct {
	Cutoffs  CutoffsConfig  `toml:"cutoffs"`
	Database DatabaseConfig `toml:"database"`
	Cache    CacheConfig    `toml:"cache"`
	Retry    RetryConfig    `toml:"retry"`
	Log      LogConfig      `toml:"log"`
}

// Load reads the base config file at path, applies the overlay selected by
// TAXASSIGN_ENV, and finalizes all values.
//
// An empty path falls back to TAXASSIGN_CONFIG, then to taxassign.toml in the
// working directory. A missing default file is not an error; a missing
// explicit one is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvTaxassignConfig)
		explicit = path != ""
	}
	if !explicit {
		path = BaseConfigFile
	}

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if overlay := overlayPath(path); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// Default returns a finalized configuration built from defaults and the
// environment only.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// Merge overwrites fields that are set in overlay.
func (c *Config) Merge(overlay *Config) {
	c.Cutoffs.Merge(&overlay.Cutoffs)
	c.Database.Merge(&overlay.Database)
	c.Cache.Merge(&overlay.Cache)
	c.Retry.Merge(&overlay.Retry)
	c.Log.Merge(&overlay.Log)
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) finalize() error {
	if err := c.Cutoffs.Finalize(); err != nil {
		return fmt.Errorf("cutoffs: %w", err)
	}
	if err := c.Database.Finalize(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Cache.Finalize(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Retry.Finalize(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Log.Finalize(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// overlayPath returns the overlay file next to base for the current
// TAXASSIGN_ENV, or "" when there is none.
func overlayPath(base string) string {
	env := os.Getenv(EnvTaxassignEnv)
	if env == "" {
		return ""
	}
	path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
