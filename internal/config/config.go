// Package config handles loading, validating, and defaulting D3tectConvert
// configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Output/format constants for configuration defaults.
const (
	DefaultListen    = "127.0.0.1:8080"
	DefaultLogFormat = "json"
	DefaultLogOutput = "stdout"
	OutputFile       = "file"
	OutputBoth       = "both"
)

// Config is the top-level service configuration.
type Config struct {
	Version   int           `yaml:"version"`
	Listen    string        `yaml:"listen"`
	DevMode   bool          `yaml:"dev_mode"` // skip HSTS for plain-HTTP local development
	SentryDSN string        `yaml:"sentry_dsn"`
	Dataset   Dataset       `yaml:"dataset"`
	Limits    Limits        `yaml:"limits"`
	Logging   LoggingConfig `yaml:"logging"`
}

// Dataset configures where the mapping data comes from.
type Dataset struct {
	Path                string `yaml:"path"` // sqlite artifact, compact index, or raw mappings file
	URL                 string `yaml:"url"`  // upstream mappings endpoint for `d3tect fetch`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	MaxFetchMB          int    `yaml:"max_fetch_mb"`
}

// Limits bounds per-request work and per-client request rates.
type Limits struct {
	SearchResults  int `yaml:"search_results"`   // cap on free-text matches per query
	ListResults    int `yaml:"list_results"`     // default cap for /api/attacks
	MaxQueryLength int `yaml:"max_query_length"` // bytes; longer queries are rejected
	RatePerMinute  int `yaml:"rate_per_minute"`  // per client IP; 0 disables limiting
	RateBurst      int `yaml:"rate_burst"`
}

// LoggingConfig configures structured event logging.
type LoggingConfig struct {
	Format         string `yaml:"format"` // json, text
	Output         string `yaml:"output"` // stdout, file, both
	File           string `yaml:"file"`
	IncludeQueries bool   `yaml:"include_queries"` // log raw query text (sanitized)
}

// Load reads, parses, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from caller
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	// Resolve a relative dataset path relative to the config file directory.
	if cfg.Dataset.Path != "" && !filepath.IsAbs(cfg.Dataset.Path) {
		cfg.Dataset.Path = filepath.Join(filepath.Dir(path), cfg.Dataset.Path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Dataset.Path == "" {
		c.Dataset.Path = "static/search_index.json"
	}
	if c.Dataset.URL == "" {
		c.Dataset.URL = "https://d3fend.mitre.org/api/ontology/inference/d3fend-full-mappings.json"
	}
	if c.Dataset.FetchTimeoutSeconds <= 0 {
		c.Dataset.FetchTimeoutSeconds = 120
	}
	if c.Dataset.MaxFetchMB <= 0 {
		c.Dataset.MaxFetchMB = 64
	}
	if c.Limits.SearchResults <= 0 {
		c.Limits.SearchResults = 20
	}
	if c.Limits.ListResults <= 0 {
		c.Limits.ListResults = 500
	}
	if c.Limits.MaxQueryLength <= 0 {
		c.Limits.MaxQueryLength = 256
	}
	if c.Limits.RatePerMinute == 0 && c.Limits.RateBurst == 0 {
		c.Limits.RatePerMinute = 120
	}
	if c.Limits.RatePerMinute < 0 {
		c.Limits.RatePerMinute = 0 // negative means explicit opt-out
	}
	if c.Limits.RateBurst <= 0 {
		c.Limits.RateBurst = 20
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = DefaultLogOutput
	}
}

// Validate checks the config for errors. Must be called after ApplyDefaults.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}

	switch c.Logging.Format {
	case DefaultLogFormat, "text":
		// valid
	default:
		return fmt.Errorf("invalid logging format %q: must be json or text", c.Logging.Format)
	}

	switch c.Logging.Output {
	case DefaultLogOutput, OutputFile, OutputBoth:
		// valid
	default:
		return fmt.Errorf("invalid logging output %q: must be stdout, file, or both", c.Logging.Output)
	}

	if (c.Logging.Output == OutputFile || c.Logging.Output == OutputBoth) && c.Logging.File == "" {
		return fmt.Errorf("logging.file is required when output is %q", c.Logging.Output)
	}

	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}

	// Warn if listen address is not loopback (service exposed to network).
	if host, _, err := net.SplitHostPort(c.Listen); err == nil {
		ip := net.ParseIP(host)
		if ip != nil && !ip.IsLoopback() {
			fmt.Fprintf(os.Stderr, "WARNING: listen address %s is not loopback - /metrics and /debug will be exposed to the network\n", c.Listen)
		}
		if host == "" || host == "0.0.0.0" || host == "::" {
			fmt.Fprintf(os.Stderr, "WARNING: listen address %s binds to all interfaces - consider 127.0.0.1 behind a reverse proxy\n", c.Listen)
		}
	}

	return nil
}

// ReloadWarning describes a potential hardening downgrade from a reload.
type ReloadWarning struct {
	Field   string
	Message string
}

// ValidateReload compares old and new configs and returns warnings for
// settings that loosen protections. Warnings don't block the reload.
func ValidateReload(old, updated *Config) []ReloadWarning {
	var warnings []ReloadWarning

	if old.Limits.RatePerMinute > 0 && updated.Limits.RatePerMinute == 0 {
		warnings = append(warnings, ReloadWarning{
			Field:   "limits.rate_per_minute",
			Message: "per-client rate limiting disabled",
		})
	} else if updated.Limits.RatePerMinute > old.Limits.RatePerMinute {
		warnings = append(warnings, ReloadWarning{
			Field: "limits.rate_per_minute",
			Message: fmt.Sprintf("rate limit loosened from %d to %d requests per minute",
				old.Limits.RatePerMinute, updated.Limits.RatePerMinute),
		})
	}

	if !old.DevMode && updated.DevMode {
		warnings = append(warnings, ReloadWarning{
			Field:   "dev_mode",
			Message: "dev mode enabled - HSTS header suppressed",
		})
	}

	if !old.Logging.IncludeQueries && updated.Logging.IncludeQueries {
		warnings = append(warnings, ReloadWarning{
			Field:   "logging.include_queries",
			Message: "raw query text will be written to logs",
		})
	}

	return warnings
}

// Defaults returns a Config with sensible defaults for local serving.
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
