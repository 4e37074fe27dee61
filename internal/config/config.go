// Package config handles tool configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME.
	ConfigDir = "bibtex2dblp"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"

	// EnvAPIURL overrides the DBLP API endpoint.
	EnvAPIURL = "DBLP_API_URL"
)

// Config holds tunables for the conversion run, stored in
// ~/.config/bibtex2dblp/config.yml. Every field has a working default;
// the file is optional.
type Config struct {
	APIURL         string     `yaml:"api_url,omitempty"`
	MaxResults     int        `yaml:"max_results,omitempty"`
	TimeoutSeconds int        `yaml:"timeout_seconds,omitempty"`
	RatePerSecond  float64    `yaml:"rate_per_second,omitempty"`
	Retry          Retry      `yaml:"retry,omitempty"`
	Thresholds     Thresholds `yaml:"thresholds,omitempty"`
	CacheDB        string     `yaml:"cache_db,omitempty"`
}

// Retry configures the lookup retry policy.
type Retry struct {
	MaxAttempts int `yaml:"max_attempts,omitempty"`
	BaseDelayMS int `yaml:"base_delay_ms,omitempty"`
	MaxDelayMS  int `yaml:"max_delay_ms,omitempty"`
}

// Thresholds configures the match confidence cutoffs. TitleSimilarity is
// a minimum (similarity), AuthorDistance is a maximum (distance). The
// fields are pointers so that an explicit zero in the config file (the
// strictest author setting) is distinguishable from an absent field.
type Thresholds struct {
	TitleSimilarity *float64 `yaml:"title_similarity,omitempty"`
	AuthorDistance  *float64 `yaml:"author_distance,omitempty"`
}

const (
	defaultTitleSimilarity = 0.7
	defaultAuthorDistance  = 0.4
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:         "https://dblp.org/search/publ/api",
		MaxResults:     5,
		TimeoutSeconds: 30,
		RatePerSecond:  2.0,
		Retry: Retry{
			MaxAttempts: 4,
			BaseDelayMS: 1000,
			MaxDelayMS:  30000,
		},
		Thresholds: Thresholds{
			TitleSimilarity: floatPtr(defaultTitleSimilarity),
			AuthorDistance:  floatPtr(defaultAuthorDistance),
		},
	}
}

func floatPtr(v float64) *float64 { return &v }

// DefaultPath returns the default config file location. Respects
// XDG_CONFIG_HOME, defaults to ~/.config/bibtex2dblp/config.yml.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// Load reads the config file at path, falling back to defaults for any
// missing file or field. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
			cfg.applyDefaults()
		}
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}

	return cfg, nil
}

// applyDefaults backfills zero-valued fields after a partial config file.
func (c *Config) applyDefaults() {
	def := Default()
	if c.APIURL == "" {
		c.APIURL = def.APIURL
	}
	if c.MaxResults <= 0 {
		c.MaxResults = def.MaxResults
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = def.TimeoutSeconds
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = def.RatePerSecond
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.BaseDelayMS <= 0 {
		c.Retry.BaseDelayMS = def.Retry.BaseDelayMS
	}
	if c.Retry.MaxDelayMS <= 0 {
		c.Retry.MaxDelayMS = def.Retry.MaxDelayMS
	}
	if c.Thresholds.TitleSimilarity == nil {
		c.Thresholds.TitleSimilarity = def.Thresholds.TitleSimilarity
	}
	if c.Thresholds.AuthorDistance == nil {
		c.Thresholds.AuthorDistance = def.Thresholds.AuthorDistance
	}
}

// TitleThreshold returns the minimum title similarity for a match.
func (c Config) TitleThreshold() float64 {
	if c.Thresholds.TitleSimilarity == nil {
		return defaultTitleSimilarity
	}
	return *c.Thresholds.TitleSimilarity
}

// AuthorThreshold returns the maximum author distance for a match.
func (c Config) AuthorThreshold() float64 {
	if c.Thresholds.AuthorDistance == nil {
		return defaultAuthorDistance
	}
	return *c.Thresholds.AuthorDistance
}

// Timeout returns the HTTP timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the initial backoff delay.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (c Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMS) * time.Millisecond
}
