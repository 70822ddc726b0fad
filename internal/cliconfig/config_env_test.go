package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"POSNET_URL":          "https://env/XML",
				"POSNET_METHOD":       "GET",
				"POSNET_DEBUG_LEVEL":  "1",
				"POSNET_FORCE_TLS":    "true",
				"POSNET_CA_FILE":      "/ca.pem",
				"POSNET_TIMEOUT":      "2m",
				"POSNET_LOG_FORMAT":   "json",
				"POSNET_SPOOL_DIR":    "/spool",
				"POSNET_RATE":         "0.5",
				"POSNET_BURST":        "2",
				"POSNET_METRICS_ADDR": ":9000",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				URL:           "https://env/XML",
				Method:        "GET",
				DebugLevel:    1,
				ForceTLS:      true,
				CAFile:        "/ca.pem",
				Timeout:       2 * time.Minute,
				LogFormat:     "json",
				SpoolDir:      "/spool",
				RatePerSecond: 0.5,
				Burst:         2,
				MetricsAddr:   ":9000",
			},
		},
		{
			name:     "respects changed flags",
			envVars:  map[string]string{"POSNET_URL": "https://env/XML", "POSNET_METHOD": "GET"},
			changed:  map[string]bool{"url": true},
			initial:  Config{URL: "https://cli/XML", Method: "POST"},
			expected: Config{URL: "https://cli/XML", Method: "GET"},
		},
		{
			name:     "debug level zero overrides",
			envVars:  map[string]string{"POSNET_DEBUG_LEVEL": "0"},
			changed:  map[string]bool{},
			initial:  Config{DebugLevel: 2},
			expected: Config{DebugLevel: 0},
		},
		{
			name:     "handles bool '1' as true",
			envVars:  map[string]string{"POSNET_FORCE_TLS": "1"},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{ForceTLS: true},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"POSNET_TIMEOUT": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"POSNET_DEBUG_LEVEL": "verbose"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for negative int",
			envVars: map[string]string{"POSNET_BURST": "-1"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid float",
			envVars: map[string]string{"POSNET_RATE": "fast"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

// Precedence order: CLI > Env > File.
func TestConfigPrecedence(t *testing.T) {
	trueVal := true
	fileConf := FileConfig{
		URL:      "https://file/XML",
		Method:   "GET",
		ForceTLS: &trueVal,
	}

	t.Setenv("POSNET_URL", "https://env/XML")
	t.Setenv("POSNET_METHOD", "POST")
	t.Setenv("POSNET_SPOOL_DIR", "/env/spool")

	changed := map[string]bool{"url": true}
	cfg := Config{URL: "https://cli/XML"}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.URL != "https://cli/XML" {
		t.Errorf("URL = %v, want https://cli/XML (CLI should win)", cfg.URL)
	}
	if cfg.Method != "POST" {
		t.Errorf("Method = %v, want POST (env should override file)", cfg.Method)
	}
	if cfg.SpoolDir != "/env/spool" {
		t.Errorf("SpoolDir = %v, want /env/spool (env should set)", cfg.SpoolDir)
	}
	if !cfg.ForceTLS {
		t.Errorf("ForceTLS = false, want true (file should set)")
	}
}
