// Package config loads the harvester configuration: run-level settings
// plus the list of sources to capture.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	dataDirEnv    = "LABORDATA_DATA_DIR"
	exportsDirEnv = "LABORDATA_EXPORTS_DIR"

	defaultDataDir      = "downloads"
	defaultExportsDir   = "exports"
	defaultWindowMonths = 12
	defaultInterval     = 750 * time.Millisecond
	defaultGroup        = "Other"
)

// Duration wraps time.Duration so YAML scalars like "750ms" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the root of the YAML configuration document.
type Config struct {
	DataDir         string   `yaml:"data_dir"`
	ExportsDir      string   `yaml:"exports_dir"`
	WindowMonths    int      `yaml:"window_months"`
	RequestInterval Duration `yaml:"request_interval"`
	Schedule        string   `yaml:"schedule"`
	Announce        bool     `yaml:"announce"`
	Sources         []Source `yaml:"sources"`
}

// Source describes one data source to capture. Which fields matter
// depends on the method; unused fields are simply empty.
type Source struct {
	Name         string   `yaml:"name"`
	Group        string   `yaml:"group"`
	Method       string   `yaml:"method"`
	PageURL      string   `yaml:"page_url"`
	PageURLs     []string `yaml:"page_urls"`
	URL          string   `yaml:"url"`
	FileURL      string   `yaml:"file_url"`
	Selector     string   `yaml:"selector"`
	Pattern      string   `yaml:"pattern"`
	RegexFilters []string `yaml:"regex_filters"`
	State        string   `yaml:"state"`
	BLSSeriesIDs []string `yaml:"bls_series_ids"`
	ACSVariables []string `yaml:"acs_variables"`
	ACSGeography string   `yaml:"acs_geography"`
	APIEndpoint  string   `yaml:"api_endpoint"`
}

// DirectURL returns the download URL for direct-file sources. file_url is
// the current key; url is kept for older configs.
func (s Source) DirectURL() string {
	if s.FileURL != "" {
		return s.FileURL
	}
	return s.URL
}

// Pages returns every page URL the source should scrape: page_urls when
// set, otherwise the single page_url.
func (s Source) Pages() []string {
	if len(s.PageURLs) > 0 {
		return s.PageURLs
	}
	if s.PageURL != "" {
		return []string{s.PageURL}
	}
	return nil
}

// Load reads and validates the configuration at path. Unknown YAML keys
// are rejected so a typoed field name fails loudly instead of silently
// disabling a source.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Interval returns the politeness spacing between HTTP requests.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.RequestInterval)
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.ExportsDir == "" {
		c.ExportsDir = defaultExportsDir
	}
	if c.WindowMonths == 0 {
		c.WindowMonths = defaultWindowMonths
	}
	if c.RequestInterval == 0 {
		c.RequestInterval = Duration(defaultInterval)
	}
	for i := range c.Sources {
		if c.Sources[i].Group == "" {
			c.Sources[i].Group = defaultGroup
		}
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dataDirEnv); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(exportsDirEnv); v != "" {
		c.ExportsDir = v
	}
}

func (c *Config) validate() error {
	if len(c.Sources) == 0 {
		return errors.New("no sources configured")
	}
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: missing name", i)
		}
		if s.Method == "" {
			return fmt.Errorf("source %q: missing method", s.Name)
		}
	}
	if c.WindowMonths < 0 {
		return fmt.Errorf("window_months must not be negative, got %d", c.WindowMonths)
	}
	return nil
}
