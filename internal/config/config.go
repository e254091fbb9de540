// Package config provides configuration types for the GaaS server.
//
// Configuration is file-based (gaas.yaml) with environment variable
// overrides (GAAS_ prefix). All paths default to a local ./data tree so a
// bare `gaas start` works without any configuration.
package config

import "path/filepath"

// Config is the top-level configuration for the GaaS server.
type Config struct {
	// Server configures the HTTP server listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Policies configures the file-based policy store.
	Policies PolicyStorageConfig `yaml:"policies" mapstructure:"policies"`

	// ActionLog configures the SQLite-backed action log.
	ActionLog ActionLogConfig `yaml:"action_log" mapstructure:"action_log"`

	// Audit configures the decision audit trail.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Auth configures API key authentication for policy uploads.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Telemetry configures OpenTelemetry trace and metric export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables development features (debug logging, open uploads).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8000").
	// Defaults to "127.0.0.1:8000" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the log output format: "text" or "json".
	// Defaults to "json".
	LogFormat string `yaml:"log_format" mapstructure:"log_format" validate:"omitempty,oneof=text json"`

	// ReadTimeout bounds request reads (e.g., "10s"). Defaults to "10s".
	ReadTimeout string `yaml:"read_timeout" mapstructure:"read_timeout" validate:"omitempty,duration_string"`

	// WriteTimeout bounds response writes (e.g., "30s"). Defaults to "30s".
	WriteTimeout string `yaml:"write_timeout" mapstructure:"write_timeout" validate:"omitempty,duration_string"`

	// ShutdownTimeout bounds graceful shutdown. Defaults to "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty,duration_string"`
}

// PolicyStorageConfig configures the file-based policy store.
type PolicyStorageConfig struct {
	// Dir is the directory holding one JSON document per policy.
	// Defaults to "data/policies".
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ActionLogConfig configures the SQLite action log.
type ActionLogConfig struct {
	// Path is the SQLite database file. Defaults to "data/action_logs.db".
	Path string `yaml:"path" mapstructure:"path"`
}

// AuditConfig configures the decision audit trail: where decision records
// are written and how the async writer batches them.
type AuditConfig struct {
	// Dir is the directory for decision log files. Defaults to "data/audit".
	Dir string `yaml:"dir" mapstructure:"dir"`

	// RetentionDays is how long decision logs are kept. Defaults to 30.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`

	// MaxFileSizeMB caps one decision log file before rotation. Defaults to 100.
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`

	// ChannelSize is the async writer's buffered channel capacity. Defaults to 1000.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is how many records are flushed per write. Defaults to 100.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is the maximum time a record waits in the batch (e.g., "1s").
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty,duration_string"`

	// SendTimeout is how long a full channel blocks the caller before the
	// record is dropped (e.g., "100ms").
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty,duration_string"`
}

// AuthConfig configures API key authentication for the policy upload
// endpoint. When UploadKeyHash is empty and DevMode is false, policy
// uploads are rejected.
type AuthConfig struct {
	// UploadKeyHash is the argon2id hash of the upload API key.
	// Generate one with `gaas hash-key`.
	UploadKeyHash string `yaml:"upload_key_hash" mapstructure:"upload_key_hash" validate:"omitempty,argon2id_hash"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	// Enabled controls whether trace and metric exporters are started.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Server defaults. Bind to localhost only; users who need network
	// access must explicitly set http_addr.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "json"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.Policies.Dir == "" {
		c.Policies.Dir = filepath.Join("data", "policies")
	}
	if c.ActionLog.Path == "" {
		c.ActionLog.Path = filepath.Join("data", "action_logs.db")
	}

	if c.Audit.Dir == "" {
		c.Audit.Dir = filepath.Join("data", "audit")
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 30
	}
	if c.Audit.MaxFileSizeMB == 0 {
		c.Audit.MaxFileSizeMB = 100
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1000
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval == "" {
		c.Audit.FlushInterval = "1s"
	}
	if c.Audit.SendTimeout == "" {
		c.Audit.SendTimeout = "100ms"
	}
}

// SetDevDefaults applies permissive defaults for development mode.
// Applied before validation so a bare `gaas start --dev` works.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	if c.Server.LogLevel == "" || c.Server.LogLevel == "info" {
		c.Server.LogLevel = "debug"
	}
	if c.Server.LogFormat == "" || c.Server.LogFormat == "json" {
		c.Server.LogFormat = "text"
	}
}

// UploadAuthEnabled reports whether policy uploads require an API key.
// Dev mode leaves uploads open unless a key hash is configured.
func (c *Config) UploadAuthEnabled() bool {
	return c.Auth.UploadKeyHash != ""
}
