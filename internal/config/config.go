// Package config loads fetchcache configuration from YAML files and the
// environment.
//
// Precedence, lowest first: built-in defaults, the base config file, overlay
// files (shallow-merged per section), then FETCHCACHE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfig       = "FETCHCACHE_CONFIG"
	EnvTTL          = "FETCHCACHE_TTL"
	EnvBacking      = "FETCHCACHE_BACKING"
	EnvStaleOnError = "FETCHCACHE_STALE_ON_ERROR"
	EnvFetchTimeout = "FETCHCACHE_FETCH_TIMEOUT"
	EnvNamespace    = "FETCHCACHE_NAMESPACE"
	EnvLogLevel     = "FETCHCACHE_LOG_LEVEL"
	EnvLogFormat    = "FETCHCACHE_LOG_FORMAT"
	EnvLogFile      = "FETCHCACHE_LOG_FILE"
)

// DefaultFetchTimeout bounds a single fetch when nothing is configured.
const DefaultFetchTimeout = 30 * time.Second

// Config is the full fetchcache configuration.
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// CacheConfig holds the knobs of a TimeBoundedCache.
type CacheConfig struct {
	// TTL is how long an entry stays fresh.
	TTL Duration `yaml:"ttl"`

	// Backing selects the store: "memory", a file path, "sqlite://<path>"
	// or "s3://bucket/prefix".
	Backing string `yaml:"backing"`

	// StaleOnError serves a stale entry when a refresh fails. Off by default.
	StaleOnError bool `yaml:"stale_on_error"`

	// FetchTimeout bounds each fetch; 0 disables the bound.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// Namespace is prepended to every cache key.
	Namespace string `yaml:"namespace,omitempty"`
}

// LoggingConfig controls the CLI logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Cache: CacheConfig{
			TTL:          Duration(DefaultTTL),
			Backing:      DefaultBacking(),
			FetchTimeout: Duration(DefaultFetchTimeout),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultBacking returns <user cache dir>/fetchcache/cache.yaml, or
// "memory" when no cache directory can be resolved.
func DefaultBacking() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return "memory"
	}
	return filepath.Join(dir, "fetchcache", "cache.yaml")
}

// Load builds a Config from defaults, the file at path (skipped when path is
// empty), each overlay, and the process environment, then validates it.
func Load(path string, overlays ...string) (*Config, error) {
	cfg := New()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	for _, overlay := range overlays {
		if err := ShallowMergeYAML(cfg, overlay); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes the YAML file at path onto c. Fields absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTTL); ok && v != "" {
		ttl, err := ParseTTL(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTTL, err)
		}
		c.Cache.TTL = Duration(ttl)
	}
	if v, ok := lookup(EnvBacking); ok && v != "" {
		c.Cache.Backing = v
	}
	if v, ok := lookup(EnvStaleOnError); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStaleOnError, err)
		}
		c.Cache.StaleOnError = b
	}
	if v, ok := lookup(EnvFetchTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFetchTimeout, err)
		}
		c.Cache.FetchTimeout = Duration(d)
	}
	if v, ok := lookup(EnvNamespace); ok {
		c.Cache.Namespace = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.Logging.File = v
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if err := ValidateTTL(c.Cache.TTL.Std()); err != nil {
		errs = append(errs, fmt.Errorf("cache.ttl: %w", err))
	}
	if strings.TrimSpace(c.Cache.Backing) == "" {
		errs = append(errs, errors.New("cache.backing cannot be empty"))
	}
	if c.Cache.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("cache.fetch_timeout must be >= 0, got %s", c.Cache.FetchTimeout.Std()))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// YAML renders c as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
