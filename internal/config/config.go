// Package config provides configuration management for stitch using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration system reads .stitch.yml, honours STITCH_ environment
// overrides, applies defaults and validates the result. It names the page
// template and output file, the watcher's exclusion list, poll interval and
// glob patterns, and any extra format tags bound to named handlers.
package config

import (
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultTemplate     = "static/template.html"
	DefaultOutput       = "index.html"
	DefaultScanInterval = time.Second
	DefaultPattern      = "./**"
	DefaultFileName     = ".stitch.yml"
)

// DefaultExcludes are always skipped by the watcher, on top of the output
// file and any configured excludes.
var DefaultExcludes = []string{".git/"}

type Config struct {
	Template     string            `mapstructure:"template" yaml:"template"`
	Output       string            `mapstructure:"output" yaml:"output"`
	Excludes     []string          `mapstructure:"excludes" yaml:"excludes"`
	ScanInterval time.Duration     `mapstructure:"scan_interval" yaml:"scan_interval"`
	Watch        WatchConfig       `mapstructure:"watch" yaml:"watch"`
	Formats      map[string]string `mapstructure:"formats" yaml:"formats,omitempty"`
	Log          LogConfig         `mapstructure:"log" yaml:"log"`
}

type WatchConfig struct {
	// Patterns are doublestar globs relative to the working directory.
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`
	// Notify wakes the poll loop early on filesystem events.
	Notify bool `mapstructure:"notify" yaml:"notify"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Viper hands back flag defaults for unset slices as a single empty
	// element in some setups.
	cfg.Excludes = compact(cfg.Excludes)
	cfg.Watch.Patterns = compact(cfg.Watch.Patterns)

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	for _, exclude := range DefaultExcludes {
		if !slices.Contains(cfg.Excludes, exclude) {
			cfg.Excludes = append(cfg.Excludes, exclude)
		}
	}
	if cfg.ScanInterval == 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if len(cfg.Watch.Patterns) == 0 {
		cfg.Watch.Patterns = []string{DefaultPattern}
	}
	if cfg.Formats == nil {
		cfg.Formats = make(map[string]string)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// yamlConfig is the on-disk shape written by MarshalYAML; durations are
// written as strings so viper can read them back.
type yamlConfig struct {
	Template     string            `yaml:"template"`
	Output       string            `yaml:"output"`
	Excludes     []string          `yaml:"excludes"`
	ScanInterval string            `yaml:"scan_interval"`
	Watch        WatchConfig       `yaml:"watch"`
	Formats      map[string]string `yaml:"formats,omitempty"`
	Log          LogConfig         `yaml:"log"`
}

// MarshalYAML implements yaml.Marshaler.
func (c Config) MarshalYAML() (interface{}, error) {
	return yamlConfig{
		Template:     c.Template,
		Output:       c.Output,
		Excludes:     c.Excludes,
		ScanInterval: c.ScanInterval.String(),
		Watch:        c.Watch,
		Formats:      c.Formats,
		Log:          c.Log,
	}, nil
}
