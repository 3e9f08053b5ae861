// Package config loads engine and CLI settings from an optional YAML file and
// AQL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/roach88/aqlengine/internal/engine"
)

// EnvPrefix prefixes every environment variable: limit.max is AQL_LIMIT_MAX.
const EnvPrefix = "AQL"

// Config is the resolved configuration.
type Config struct {
	Workers     int              `mapstructure:"workers"`
	MaxBindings int              `mapstructure:"max_bindings"`
	Limit       LimitConfig      `mapstructure:"limit"`
	Fetch       FetchConfig      `mapstructure:"fetch"`
	Store       StoreConfig      `mapstructure:"store"`
	Archetypes  ArchetypesConfig `mapstructure:"archetypes"`
	Log         LogConfig        `mapstructure:"log"`
}

type LimitConfig struct {
	Default int `mapstructure:"default"`
	Max     int `mapstructure:"max"`
}

type FetchConfig struct {
	Max        int    `mapstructure:"max"`
	Precedence string `mapstructure:"precedence"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type ArchetypesConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var keys = []string{
	"workers",
	"max_bindings",
	"limit.default",
	"limit.max",
	"fetch.max",
	"fetch.precedence",
	"store.path",
	"archetypes.dir",
	"log.level",
	"log.format",
}

// Load reads configuration. An empty path skips the file; a named file that
// cannot be read is an error. Environment variables override the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("workers", engine.DefaultWorkers)
	v.SetDefault("max_bindings", 0)
	v.SetDefault("limit.default", 0)
	v.SetDefault("limit.max", 0)
	v.SetDefault("fetch.max", 0)
	v.SetDefault("fetch.precedence", string(engine.PrecedenceMinFetch))
	v.SetDefault("store.path", "")
	v.SetDefault("archetypes.dir", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable. It reports every
// problem, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.MaxBindings < 0 {
		errs = append(errs, fmt.Errorf("max_bindings must not be negative, got %d", c.MaxBindings))
	}
	bounds := []struct {
		name string
		n    int
	}{
		{"limit.default", c.Limit.Default},
		{"limit.max", c.Limit.Max},
		{"fetch.max", c.Fetch.Max},
	}
	for _, b := range bounds {
		if b.n < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", b.name, b.n))
		}
	}
	if _, err := engine.ParseFetchPrecedence(c.Fetch.Precedence); err != nil {
		errs = append(errs, fmt.Errorf("fetch.precedence: %w", err))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// LimitPolicy returns the engine limit policy. Call Validate first.
func (c *Config) LimitPolicy() engine.LimitPolicy {
	precedence, _ := engine.ParseFetchPrecedence(c.Fetch.Precedence)
	return engine.LimitPolicy{
		DefaultLimit: c.Limit.Default,
		MaxLimit:     c.Limit.Max,
		MaxFetch:     c.Fetch.Max,
		Precedence:   precedence,
	}
}

// Level returns the configured log level, Warn when it does not parse.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.WarnLevel
	}
	return level
}
