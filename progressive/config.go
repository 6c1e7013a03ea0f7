package progressive

import (
	"github.com/hazyhaar/pif/progressive/internal/config"
)

// Config is the top-level pif configuration. Re-exported from internal.
type Config = config.Config

// SelectorConfig names the markup the upgrader looks for.
type SelectorConfig = config.SelectorConfig

// FetchConfig controls image requests.
type FetchConfig = config.FetchConfig

// StoreConfig points at the SQLite store.
type StoreConfig = config.StoreConfig

// MediaConfig is where uploaded images are stored.
type MediaConfig = config.MediaConfig

// MetricsConfig controls metrics retention.
type MetricsConfig = config.MetricsConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
