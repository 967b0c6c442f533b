package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/robfig/cron/v3"
)

// Sentinel errors for configuration validation.
var (
	ErrBadLogLevel = errors.New("config: invalid log_level")
	ErrBadListen   = errors.New("config: invalid gateway listen address")
	ErrBadSchedule = errors.New("config: invalid retention schedule")
	ErrBadTimeout  = errors.New("config: negative duration")
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks structural consistency of a loaded configuration.
func Validate(cfg *Config) error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.RunTimeout < 0 || cfg.WatchInterval < 0 || cfg.Retention.MaxAge < 0 {
		return ErrBadTimeout
	}
	if cfg.Gateway.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Gateway.Listen); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrBadListen, cfg.Gateway.Listen, err)
		}
	}
	if cfg.Retention.MaxAge > 0 {
		if _, err := cronParser.Parse(cfg.Retention.Schedule); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrBadSchedule, cfg.Retention.Schedule, err)
		}
	}
	return nil
}

// ParseLevel maps a config log level string to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadLogLevel, s)
	}
}
