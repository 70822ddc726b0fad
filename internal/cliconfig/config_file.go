package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	URL           string  `toml:"url"`
	Method        string  `toml:"method"`
	DebugLevel    *int    `toml:"debug_level"`
	ForceTLS      *bool   `toml:"force_tls"`
	CAFile        string  `toml:"ca_file"`
	Timeout       string  `toml:"timeout"`
	LogFormat     string  `toml:"log_format"`
	SpoolDir      string  `toml:"spool_dir"`
	RatePerSecond float64 `toml:"rate"`
	Burst         int     `toml:"burst"`
	MetricsAddr   string  `toml:"metrics_addr"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.posnet/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".posnet", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("url", fc.URL, &cfg.URL)
	s.setString("method", fc.Method, &cfg.Method)
	s.setString("ca-file", fc.CAFile, &cfg.CAFile)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("spool-dir", fc.SpoolDir, &cfg.SpoolDir)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	s.setIntPtr("debug-level", fc.DebugLevel, &cfg.DebugLevel)
	s.setBool("force-tls", fc.ForceTLS, &cfg.ForceTLS)

	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}

	s.setFloat("rate", fc.RatePerSecond, &cfg.RatePerSecond)
	s.setInt("burst", fc.Burst, &cfg.Burst)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
