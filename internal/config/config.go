package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/uatax/internal/rates"
	"github.com/cleared-dev/uatax/internal/tax"
)

// Config represents an optional uatax.yaml file.
type Config struct {
	TaxPercent int         `yaml:"tax_percent"`
	Rates      RatesConfig `yaml:"rates"`
	Log        LogConfig   `yaml:"log"`
}

// RatesConfig controls exchange rate lookups. Rates are always for
// rates.Currency.
type RatesConfig struct {
	Endpoint  string   `yaml:"endpoint"`
	Timeout   Duration `yaml:"timeout"`    // 0 = no timeout
	CacheSize int      `yaml:"cache_size"` // 0 = no memo
}

// LogConfig controls diagnostic output on stderr.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Load reads a uatax.yaml file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TaxPercent: 5,
		Rates: RatesConfig{
			Endpoint:  rates.DefaultEndpoint,
			CacheSize: 366,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Validate checks the configuration before any statement or network work.
func (c *Config) Validate() error {
	if _, err := tax.Fraction(c.TaxPercent); err != nil {
		return fmt.Errorf("tax_percent: %w", err)
	}
	if c.Rates.Endpoint == "" {
		return fmt.Errorf("rates.endpoint is empty")
	}
	if c.Rates.Timeout < 0 {
		return fmt.Errorf("rates.timeout must not be negative")
	}
	if c.Rates.CacheSize < 0 {
		return fmt.Errorf("rates.cache_size must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
