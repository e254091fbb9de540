package config

import (
	"strings"
	"testing"
)

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8000" {
		t.Errorf("http addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.LogLevel != "info" || cfg.Server.LogFormat != "json" {
		t.Errorf("log defaults = %q/%q", cfg.Server.LogLevel, cfg.Server.LogFormat)
	}
	if cfg.Audit.RetentionDays != 30 || cfg.Audit.ChannelSize != 1000 || cfg.Audit.BatchSize != 100 {
		t.Errorf("audit defaults = %+v", cfg.Audit)
	}
	if cfg.Policies.Dir == "" || cfg.ActionLog.Path == "" || cfg.Audit.Dir == "" {
		t.Errorf("storage path defaults missing: %+v", cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestSetDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Server.HTTPAddr = "0.0.0.0:9000"
	cfg.Audit.RetentionDays = 7
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("explicit addr overwritten: %q", cfg.Server.HTTPAddr)
	}
	if cfg.Audit.RetentionDays != 7 {
		t.Errorf("explicit retention overwritten: %d", cfg.Audit.RetentionDays)
	}
}

func TestSetDevDefaults(t *testing.T) {
	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()
	if cfg.Server.LogLevel != "debug" || cfg.Server.LogFormat != "text" {
		t.Errorf("dev defaults = %q/%q", cfg.Server.LogLevel, cfg.Server.LogFormat)
	}

	// Explicit choices survive dev mode.
	cfg = Config{DevMode: true}
	cfg.Server.LogLevel = "error"
	cfg.SetDevDefaults()
	if cfg.Server.LogLevel != "error" {
		t.Errorf("explicit log level overwritten: %q", cfg.Server.LogLevel)
	}

	// Dev defaults only apply in dev mode.
	cfg = Config{}
	cfg.SetDevDefaults()
	if cfg.Server.LogLevel != "" {
		t.Errorf("dev defaults applied outside dev mode: %q", cfg.Server.LogLevel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			"bad log level",
			func(c *Config) { c.Server.LogLevel = "verbose" },
			"must be one of",
		},
		{
			"bad listen address",
			func(c *Config) { c.Server.HTTPAddr = "not an address" },
			"host:port",
		},
		{
			"bad duration",
			func(c *Config) { c.Server.ReadTimeout = "ten seconds" },
			"positive duration",
		},
		{
			"negative duration",
			func(c *Config) { c.Audit.FlushInterval = "-1s" },
			"positive duration",
		},
		{
			"plaintext upload key",
			func(c *Config) { c.Auth.UploadKeyHash = "my-secret-key" },
			"argon2id",
		},
		{
			"zero retention",
			func(c *Config) { c.Audit.RetentionDays = -1 },
			"at least",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.SetDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestUploadAuthEnabled(t *testing.T) {
	var cfg Config
	if cfg.UploadAuthEnabled() {
		t.Error("auth must be disabled without a key hash")
	}
	cfg.Auth.UploadKeyHash = "$argon2id$v=19$m=48128,t=1,p=1$salt$hash"
	if !cfg.UploadAuthEnabled() {
		t.Error("auth must be enabled with a key hash")
	}
}
