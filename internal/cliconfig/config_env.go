package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (POSNET_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("url", os.Getenv("POSNET_URL"), &cfg.URL)
	s.setString("method", os.Getenv("POSNET_METHOD"), &cfg.Method)
	s.setString("ca-file", os.Getenv("POSNET_CA_FILE"), &cfg.CAFile)
	s.setString("log-format", os.Getenv("POSNET_LOG_FORMAT"), &cfg.LogFormat)
	s.setString("spool-dir", os.Getenv("POSNET_SPOOL_DIR"), &cfg.SpoolDir)
	s.setString("metrics-addr", os.Getenv("POSNET_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setIntFromString("debug-level", os.Getenv("POSNET_DEBUG_LEVEL"), &cfg.DebugLevel); err != nil {
		return err
	}
	s.setBoolFromString("force-tls", os.Getenv("POSNET_FORCE_TLS"), &cfg.ForceTLS)

	if err := s.setDuration("timeout", os.Getenv("POSNET_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}

	if err := s.setFloatFromString("rate", os.Getenv("POSNET_RATE"), &cfg.RatePerSecond); err != nil {
		return err
	}
	if err := s.setIntFromString("burst", os.Getenv("POSNET_BURST"), &cfg.Burst); err != nil {
		return err
	}

	return nil
}
