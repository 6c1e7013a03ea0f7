// Package config handles pif configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pif configuration.
type Config struct {
	Selectors     SelectorConfig `yaml:"selectors"`
	Fetch         FetchConfig    `yaml:"fetch"`
	SettleTimeout time.Duration  `yaml:"settle_timeout"`
	SinkTimeout   time.Duration  `yaml:"sink_timeout"` // bounds delivery of the final report
	Listen        string         `yaml:"listen"`
	MaxDocument   int64          `yaml:"max_document"`
	Sanitize      bool           `yaml:"sanitize"`
	Store         StoreConfig    `yaml:"store"`
	Media         MediaConfig    `yaml:"media"`
	Metrics       MetricsConfig  `yaml:"metrics"`
	Sinks         []SinkConfig   `yaml:"sinks"`
}

// SelectorConfig names the markup the upgrader looks for.
type SelectorConfig struct {
	Placeholder string `yaml:"placeholder"`
	Small       string `yaml:"small"`
	LargeAttr   string `yaml:"large_attr"` // dataset name, read as data-<large_attr>
	LoadedClass string `yaml:"loaded_class"`
}

// FetchConfig controls image requests.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	UserAgent    string        `yaml:"user_agent"`
	VerifyDecode *bool         `yaml:"verify_decode"`
	BlockPrivate bool          `yaml:"block_private"`
	HTTP2        bool          `yaml:"http2"`
}

// StoreConfig points at the SQLite store. Empty path disables it.
type StoreConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	Synchronous string        `yaml:"synchronous"` // OFF | NORMAL | FULL | EXTRA
}

// MetricsConfig controls the metrics table kept in the store.
type MetricsConfig struct {
	Retention time.Duration `yaml:"retention"`
}

// MediaConfig is where uploaded images and their thumbnails live. Empty
// root disables uploads.
type MediaConfig struct {
	Root      string `yaml:"root"`
	URLPrefix string `yaml:"url_prefix"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | sqlite | metrics
	URL  string `yaml:"url"`  // for webhook
}

// Decode reports whether fetched bytes must decode as an image for the
// load to count. Defaults to true.
func (f FetchConfig) Decode() bool {
	return f.VerifyDecode == nil || *f.VerifyDecode
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Selectors.Placeholder == "" {
		c.Selectors.Placeholder = ".placeholder"
	}
	if c.Selectors.Small == "" {
		c.Selectors.Small = ".img-small"
	}
	if c.Selectors.LargeAttr == "" {
		c.Selectors.LargeAttr = "large"
	}
	if c.Selectors.LoadedClass == "" {
		c.Selectors.LoadedClass = "loaded"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 20 << 20
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (compatible; pif/1.0)"
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 60 * time.Second
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = 5 * time.Second
	}
	if c.Listen == "" {
		c.Listen = ":8088"
	}
	if c.Metrics.Retention <= 0 {
		c.Metrics.Retention = 7 * 24 * time.Hour
	}
	if c.Media.URLPrefix == "" {
		c.Media.URLPrefix = "/media/"
	}
	if c.MaxDocument <= 0 {
		c.MaxDocument = 5 << 20
	}
	if c.Store.BusyTimeout <= 0 {
		c.Store.BusyTimeout = 10 * time.Second
	}
	if c.Store.Synchronous == "" {
		c.Store.Synchronous = "NORMAL"
	}
	c.Store.Synchronous = strings.ToUpper(c.Store.Synchronous)
}

func (c *Config) validate() error {
	switch c.Store.Synchronous {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("config: store.synchronous: unknown mode %q", c.Store.Synchronous)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout", "sqlite", "metrics":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
		if (s.Type == "sqlite" || s.Type == "metrics") && c.Store.Path == "" {
			return fmt.Errorf("config: sinks[%d]: %s sink needs store.path", i, s.Type)
		}
	}
	return nil
}
