// Package config loads framesource settings from YAML, the environment and
// command-line overrides, and builds the logger they describe.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rshade/framesource/internal/engine/runner"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvHome        = "FRAMESOURCE_HOME"
	EnvLogLevel    = "FRAMESOURCE_LOG_LEVEL"
	EnvLogFormat   = "FRAMESOURCE_LOG_FORMAT"
	EnvParallelism = "FRAMESOURCE_PARALLELISM"
	EnvBundleSize  = "FRAMESOURCE_BUNDLE_SIZE"
)

// Top-level YAML config key names used for shallow merge.
const (
	keySource  = "source"
	keyRunner  = "runner"
	keyLogging = "logging"
	keyMetrics = "metrics"
)

// Log formats accepted in LoggingConfig.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Validation errors.
var (
	ErrInvalidLogFormat = errors.New("logging.format must be console or json")
	ErrInvalidLogLevel  = errors.New("logging.level is not a known level")
)

// Config is the full framesource configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Runner  RunnerConfig  `yaml:"runner"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SourceConfig controls how datasets are split and read.
type SourceConfig struct {
	BundleSize   int64 `yaml:"bundle_size"`
	LegacySplit  bool  `yaml:"legacy_split"`
	ScanFromZero bool  `yaml:"scan_from_zero"`
}

// RunnerConfig controls the local parallel runner.
type RunnerConfig struct {
	Parallelism int `yaml:"parallelism"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig controls counter export.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Textfile  string `yaml:"textfile"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Source: SourceConfig{
			BundleSize: runner.DefaultBundleSize,
		},
		Runner: RunnerConfig{
			Parallelism: runner.DefaultParallelism,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: FormatConsole,
		},
		Metrics: MetricsConfig{
			Namespace: "framesource",
		},
	}
}

// GetConfigDir returns the framesource configuration directory.
func GetConfigDir() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".framesource"), nil
}

// DefaultPath returns the path of the default config file.
func DefaultPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load returns defaults overlaid with the file at path. A missing file is not
// an error when optional is true.
func Load(path string, optional bool) (*Config, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}

	if err := ShallowMergeYAML(cfg, path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// target. Keys present in the file replace entire sections; absent keys and
// unknown keys leave target unchanged.
func ShallowMergeYAML(target *Config, path string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config YAML from %s: %w", path, err)
	}

	for key, node := range overlay {
		var dest any
		switch key {
		case keySource:
			target.Source = SourceConfig{}
			dest = &target.Source
		case keyRunner:
			target.Runner = RunnerConfig{}
			dest = &target.Runner
		case keyLogging:
			target.Logging = LoggingConfig{}
			dest = &target.Logging
		case keyMetrics:
			target.Metrics = MetricsConfig{}
			dest = &target.Metrics
		default:
			continue
		}
		if err = node.Decode(dest); err != nil {
			return fmt.Errorf("applying config section %q: %w", key, err)
		}
	}

	return nil
}

// ApplyEnv overrides settings from environment variables read through
// lookup. Values that fail to parse are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvParallelism); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Runner.Parallelism = n
		}
	}
	if v, ok := lookup(EnvBundleSize); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Source.BundleSize = n
		}
	}
}

// Validate checks every section and joins all problems found.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.BundleSize < 0 {
		errs = append(errs, fmt.Errorf("source.bundle_size: %w", runner.ErrInvalidBundleSize))
	}
	if c.Runner.Parallelism < 1 || c.Runner.Parallelism > runner.MaxParallelism {
		errs = append(errs, fmt.Errorf("runner.parallelism %d: %w", c.Runner.Parallelism, runner.ErrInvalidParallelism))
	}
	if c.Logging.Format != FormatConsole && c.Logging.Format != FormatJSON {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidLogFormat, c.Logging.Format))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
