// Package config loads ossinventory settings from a TOML file.
//
// The file is optional. Its default location is
// $XDG_CONFIG_HOME/ossinventory/config.toml (~/.config/ossinventory/config.toml
// when XDG_CONFIG_HOME is unset). Command-line flags override file values.
//
//	registry     = "https://registry.npmjs.org/{package}/{version}"
//	concurrency  = 4
//	retries      = 2
//	timeout      = "30s" # each metadata request
//	idle_timeout = "1m"  # a download receiving no data
//	run_timeout  = "30m" # the whole run; unset means no limit
//	format       = "csv"
//	sort         = true
//
//	[cache]
//	enabled = true
//	ttl     = "24h"
//	redis   = "localhost:6379"
//
//	[mongo]
//	uri        = "mongodb://localhost:27017"
//	database   = "ossinventory"
//	collection = "packages"
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/ossinventory/pkg/errors"
	"github.com/matzehuels/ossinventory/pkg/httputil"
	"github.com/matzehuels/ossinventory/pkg/integrations/npm"
	"github.com/matzehuels/ossinventory/pkg/inventory"
)

const appName = "ossinventory"

// Default values.
const (
	DefaultConcurrency = 1
	DefaultTimeout     = 2 * time.Minute
	DefaultIdleTimeout = httputil.DefaultIdleTimeout
	DefaultCacheTTL    = 24 * time.Hour
	MaxConcurrency     = 64
)

// Config holds all file-configurable settings.
type Config struct {
	Registry    string   `toml:"registry"`
	Concurrency int      `toml:"concurrency"`
	Retries     int      `toml:"retries"`
	Timeout     Duration `toml:"timeout"`
	IdleTimeout Duration `toml:"idle_timeout"`
	RunTimeout  Duration `toml:"run_timeout"`
	UserAgent   string   `toml:"user_agent"`
	Format      string   `toml:"format"`
	Sort        bool     `toml:"sort"`
	Dev         bool     `toml:"dev"`

	Cache Cache `toml:"cache"`
	Mongo Mongo `toml:"mongo"`
}

// Cache configures metadata caching.
type Cache struct {
	Enabled bool     `toml:"enabled"`
	TTL     Duration `toml:"ttl"`
	Dir     string   `toml:"dir"`
	Redis   string   `toml:"redis"` // host:port; selects Redis over the file cache
}

// Mongo configures the optional MongoDB sink. An empty URI disables it.
type Mongo struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Registry:    npm.DefaultURLTemplate,
		Concurrency: DefaultConcurrency,
		Timeout:     Duration{DefaultTimeout},
		IdleTimeout: Duration{DefaultIdleTimeout},
		Format:      string(inventory.FormatCSV),
		Cache:       Cache{TTL: Duration{DefaultCacheTTL}},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads path on top of [Default]. When path is empty the default
// location is tried and a missing file yields the defaults; an explicit path
// must exist. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "load %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errs.New(errs.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. Errors are INVALID_CONFIG.
func (c *Config) Validate() error {
	switch {
	case c.Concurrency < 1 || c.Concurrency > MaxConcurrency:
		return errs.New(errs.ErrCodeInvalidConfig, "concurrency must be between 1 and %d, got %d", MaxConcurrency, c.Concurrency)
	case c.Retries < 0:
		return errs.New(errs.ErrCodeInvalidConfig, "retries must not be negative")
	case c.Timeout.Duration < 0 || c.IdleTimeout.Duration < 0 || c.RunTimeout.Duration < 0:
		return errs.New(errs.ErrCodeInvalidConfig, "timeouts must not be negative")
	case !strings.Contains(c.Registry, "{package}") || !strings.Contains(c.Registry, "{version}"):
		return errs.New(errs.ErrCodeInvalidConfig, "registry template must contain {package} and {version}: %q", c.Registry)
	}
	if err := errs.ValidateURL(c.Registry); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "registry")
	}
	if _, err := inventory.ParseFormat(c.Format); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "format")
	}
	return nil
}
