// Package config loads the crawler's runtime configuration from YAML with
// sensible defaults for the public archive store.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cryptohist/visioncrawl/internal/archive"
	"github.com/cryptohist/visioncrawl/internal/faults"
)

// Config is the crawler runtime configuration.
type Config struct {
	BaseURL       string      `yaml:"base_url"`       // Remote store root for monthly kline archives
	DataDir       string      `yaml:"data_dir"`       // Root of the local cache tiers
	Quote         string      `yaml:"quote"`          // Quote symbol appended to every asset
	Granularity   string      `yaml:"granularity"`    // Sampling interval label
	Concurrency   int         `yaml:"concurrency"`    // Concurrent asset pipelines
	BirthYear     int         `yaml:"birth_year"`     // Oldest year worth probing
	ClearCache    bool        `yaml:"clear_cache"`    // Remove the download tier after a run
	ClearExtracts bool        `yaml:"clear_extracts"` // Remove month files after assembly
	Fetch         FetchConfig `yaml:"fetch"`
}

// FetchConfig tunes the HTTP client toward the store.
type FetchConfig struct {
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	RequestsPerSecond     float64 `yaml:"requests_per_second"`
	Burst                 int     `yaml:"burst"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		BaseURL:     "https://data.binance.vision/data/spot/monthly/klines",
		DataDir:     "./binance_data",
		Quote:       "USDT",
		Granularity: "1m",
		Concurrency: 4,
		BirthYear:   2017,
		Fetch: FetchConfig{
			RequestTimeoutSeconds: 300,
			RequestsPerSecond:     10,
			Burst:                 20,
		},
	}
}

// Load overlays the YAML file at path onto the defaults. A missing file is
// not an error: the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that reflect a defect rather than a runtime
// condition. The run must not start with any of these.
func (c Config) Validate() error {
	if _, err := archive.TsFactor(c.Granularity); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return faults.Configuration("config.validate", fmt.Errorf("concurrency %d must be positive", c.Concurrency))
	}
	if c.BaseURL == "" {
		return faults.Configuration("config.validate", fmt.Errorf("base_url must not be empty"))
	}
	if c.Quote == "" {
		return faults.Configuration("config.validate", fmt.Errorf("quote must not be empty"))
	}
	return nil
}
