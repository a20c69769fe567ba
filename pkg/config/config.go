package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the frametree configuration, usually read from frametree.yaml.
type Config struct {
	// Page to open in the playwright-driven browser. Empty disables the
	// browser driver.
	StartURL string `yaml:"start_url" json:"start_url"`

	// How often the presenter polls the registry
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// Address of the HTTP endpoint for a browser extension. Empty disables it.
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	Browser BrowserConfig `yaml:"browser" json:"browser"`
	Filter  FilterConfig  `yaml:"filter" json:"filter"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig configures the playwright browser session
type BrowserConfig struct {
	Headless bool          `yaml:"headless" json:"headless"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`   // navigation and evaluation timeout
	Width    int           `yaml:"width" json:"width"`       // viewport width
	Height   int           `yaml:"height" json:"height"`     // viewport height
	Evaluate bool          `yaml:"evaluate" json:"evaluate"` // measure depth inside each frame instead of via frame handles
}

// FilterConfig holds glob patterns applied to frame urls before reporting
type FilterConfig struct {
	AllowedPatterns []string `yaml:"allowed_patterns" json:"allowed_patterns"`
	DeniedPatterns  []string `yaml:"denied_patterns" json:"denied_patterns"`
}

// OutputConfig controls how the presenter renders trees
type OutputConfig struct {
	JSON      bool `yaml:"json" json:"json"`
	Highlight bool `yaml:"highlight" json:"highlight"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// Default values
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultBrowserTimeout = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultVerbosity      = "normal"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		PollInterval: DefaultPollInterval,
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  DefaultBrowserTimeout,
			Width:    DefaultViewportWidth,
			Height:   DefaultViewportHeight,
		},
		Filter: FilterConfig{
			DeniedPatterns: []string{"about:*"},
		},
		Output: OutputConfig{
			JSON: true,
		},
		Logging: LoggingConfig{
			Verbosity: DefaultVerbosity,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the unvalidated defaults when path
// is empty so callers can apply overrides before validating.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and fills zero values with defaults
func (c *Config) Validate() error {
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval cannot be negative")
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.Browser.Timeout < 0 {
		return fmt.Errorf("browser timeout cannot be negative")
	}
	if c.Browser.Timeout == 0 {
		c.Browser.Timeout = DefaultBrowserTimeout
	}

	if c.Browser.Width < 0 || c.Browser.Height < 0 {
		return fmt.Errorf("viewport dimensions cannot be negative")
	}
	if c.Browser.Width == 0 {
		c.Browser.Width = DefaultViewportWidth
	}
	if c.Browser.Height == 0 {
		c.Browser.Height = DefaultViewportHeight
	}

	switch c.Logging.Verbosity {
	case "":
		c.Logging.Verbosity = DefaultVerbosity
	case "quiet", "normal", "verbose", "debug":
	default:
		return fmt.Errorf("invalid verbosity: %s (must be quiet, normal, verbose or debug)", c.Logging.Verbosity)
	}

	if c.StartURL == "" && c.ListenAddr == "" {
		return fmt.Errorf("nothing to track: set start_url or listen_addr")
	}

	return nil
}
