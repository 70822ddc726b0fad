package cliconfig

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/posnet/pkg/log"
	"github.com/bft-labs/posnet/pkg/posnet"
)

// Config holds CLI configuration for posnet.
type Config struct {
	URL        string
	Method     string
	DebugLevel int
	ForceTLS   bool
	CAFile     string

	// Timeout bounds one whole send; zero leaves only the connector's own
	// connect and data timeouts.
	Timeout time.Duration

	LogFormat string

	SpoolDir      string
	RatePerSecond float64
	Burst         int
	MetricsAddr   string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Method:        string(posnet.MethodPost),
		LogFormat:     log.FormatConsole,
		RatePerSecond: 5,
		Burst:         1,
	}
}

// Validate checks the configuration for errors and normalizes fields.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", c.URL)
	}

	m, err := posnet.ParseMethod(c.Method)
	if err != nil {
		return err
	}
	c.Method = string(m)

	if c.DebugLevel < 0 || c.DebugLevel > 2 {
		return fmt.Errorf("debug level must be 0, 1 or 2, got %d", c.DebugLevel)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat != log.FormatConsole && c.LogFormat != log.FormatJSON {
		return fmt.Errorf("log format must be %q or %q", log.FormatConsole, log.FormatJSON)
	}

	if c.RatePerSecond <= 0 {
		return fmt.Errorf("rate must be positive")
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}

	return nil
}

// ValidateSpool checks the settings only the watch command needs.
func (c *Config) ValidateSpool() error {
	if c.SpoolDir == "" {
		return fmt.Errorf("spool-dir is required")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int from a pointer, so zero can be expressed explicitly.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination.
// Negative values are rejected; zero is kept because debug level 0 is meaningful.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return fmt.Errorf("parse %s: must not be negative", flag)
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if positive.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
