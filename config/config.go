// Package config loads the fileschema configuration: the staging store, the root
// paths to ingest and the discovery defaults.
//
// Values are read in this order, later sources overriding earlier ones:
// built-in defaults, the YAML file, then FILESCHEMA_ environment variables.
// Nested keys are separated by a double underscore in variable names, so
// FILESCHEMA_STAGING__LOCATION sets staging.location.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/staging"
)

const (
	// EnvPrefix prefixes every environment variable read by Load
	EnvPrefix = "FILESCHEMA_"
	// DefaultSampleSize is the number of rows staged and sampled per discovered file
	DefaultSampleSize = 100
	// DefaultLogLevel is the slog level name used when none is configured
	DefaultLogLevel = "warn"
)

// Config holds all fileschema configuration options.
type Config struct {
	Staging    staging.Config   `koanf:"staging"`
	SampleSize int              `koanf:"sample_size"`
	LogLevel   string           `koanf:"log_level"`
	RootPaths  []model.RootPath `koanf:"root_paths"`
}

// Load reads the configuration. An empty path skips the file and uses defaults and
// environment variables only. Relative root paths in the file are resolved against
// the directory holding the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"staging.driver":   string(staging.DriverSQLite),
		"staging.location": staging.MemoryLocation,
		"sample_size":      DefaultSampleSize,
		"log_level":        DefaultLogLevel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// FILESCHEMA_STAGING__DRIVER -> staging.driver
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if path != "" {
		base := filepath.Dir(path)
		for i := range cfg.RootPaths {
			cfg.RootPaths[i].RootPath = resolvePathRelativeTo(cfg.RootPaths[i].RootPath, base)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration values that would fail later at use.
func (c *Config) Validate() error {
	if c.SampleSize < 0 {
		return model.Configurationf("sample_size must not be negative, got %d", c.SampleSize)
	}
	switch c.Staging.Driver {
	case "", staging.DriverSQLite, staging.DriverDuckDB:
	default:
		return model.Configurationf("unknown staging driver %q", c.Staging.Driver)
	}
	seen := make(map[string]bool, len(c.RootPaths))
	for i, root := range c.RootPaths {
		if strings.TrimSpace(root.RootPath) == "" {
			return model.Configurationf("root_paths[%d] has no path", i)
		}
		if root.Name == "" {
			continue
		}
		if seen[root.Name] {
			return model.Configurationf("root path name %q is used twice", root.Name)
		}
		seen[root.Name] = true
	}
	return nil
}

// RootPath returns the root path with the given name
func (c *Config) RootPath(name string) (model.RootPath, bool) {
	for _, root := range c.RootPaths {
		if root.Name == name {
			return root, true
		}
	}
	return model.RootPath{}, false
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
