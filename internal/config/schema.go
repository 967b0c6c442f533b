// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for the cronos daemon.
package config

import "time"

// Config is the top-level configuration structure. Every field has a
// working default; a daemon started without a config file behaves like the
// stock installation.
type Config struct {
	// DataDir is the store root shared with other clients.
	// Defaults to ~/.cronos.
	DataDir string `yaml:"data_dir,omitempty"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level,omitempty"`

	// Shell is the binary used to run job commands. Defaults to /bin/bash.
	Shell string `yaml:"shell,omitempty"`

	// RunTimeout is an optional ceiling on a single execution. Zero means
	// jobs run until they finish on their own.
	RunTimeout Duration `yaml:"run_timeout,omitempty"`

	// WatchInterval is how often the daemon polls the jobs document for
	// edits made by other clients. Defaults to 5s.
	WatchInterval Duration `yaml:"watch_interval,omitempty"`

	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Retention RetentionConfig `yaml:"retention,omitempty"`
}

// GatewayConfig controls the read-only HTTP status surface.
type GatewayConfig struct {
	// Enabled turns the gateway on. Off by default.
	Enabled bool `yaml:"enabled,omitempty"`

	// Listen is the bind address. Defaults to 127.0.0.1:8433.
	Listen string `yaml:"listen,omitempty"`
}

// RetentionConfig controls pruning of old finished runs.
type RetentionConfig struct {
	// MaxAge drops finished runs older than this. Zero disables pruning.
	MaxAge Duration `yaml:"max_age,omitempty"`

	// Schedule is a 5-field cron expression for the prune job.
	// Defaults to hourly.
	Schedule string `yaml:"schedule,omitempty"`
}

// Default values applied by Load.
const (
	DefaultLogLevel      = "info"
	DefaultShell         = "/bin/bash"
	DefaultListen        = "127.0.0.1:8433"
	DefaultWatchInterval = 5 * time.Second
	DefaultPruneSchedule = "0 * * * *"
)

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Shell == "" {
		c.Shell = DefaultShell
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = Duration(DefaultWatchInterval)
	}
	if c.Gateway.Listen == "" {
		c.Gateway.Listen = DefaultListen
	}
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = DefaultPruneSchedule
	}
}
