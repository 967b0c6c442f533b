// Package app provides the shared entry point for the cronos daemon.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flemzord/cronos/internal/config"
	"github.com/flemzord/cronos/internal/gateway"
	"github.com/flemzord/cronos/internal/job"
	"github.com/flemzord/cronos/internal/maintenance"
	"github.com/flemzord/cronos/internal/manager"
	"github.com/flemzord/cronos/internal/metrics"
	"github.com/flemzord/cronos/internal/store"
)

// RunParams configures the main daemon loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.ResolveConfigPath is consulted; a daemon without
	// any config file runs on defaults.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the configured store root.
	DataDir string

	// LogLevel overrides the configured minimum log level when non-empty.
	LogLevel string
}

// Run loads configuration, starts the manager with its scheduler, and
// blocks until a shutdown signal is received. SIGHUP and store-file
// change events trigger a reload of the job collection.
func Run(params RunParams) error {
	cfg, err := loadConfig(params.ConfigPath)
	if err != nil {
		return err
	}
	if params.DataDir != "" {
		cfg.DataDir = params.DataDir
	}
	if params.LogLevel != "" {
		cfg.LogLevel = params.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	logger.Info("cronos starting", "version", params.Version, "commit", params.Commit)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	mx := metrics.New()
	mgr := manager.New(manager.Config{
		Store:      st,
		Logger:     logger,
		Metrics:    mx,
		Shell:      cfg.Shell,
		RunTimeout: cfg.RunTimeout.Std(),
	})
	if err := mgr.Start(); err != nil {
		return err
	}
	defer mgr.Stop()

	// --- store watcher: pick up edits made by other clients ---
	watcher := store.NewWatcher(st, cfg.WatchInterval.Std())
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watcher.Start(watchCtx)
	defer watcher.Stop()

	// --- gateway (optional) ---
	if cfg.Gateway.Enabled {
		gw := gateway.New(gateway.Config{Listen: cfg.Gateway.Listen}, mgr, mx, logger)
		if err := gw.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := gw.Stop(ctx); err != nil {
				logger.Warn("gateway shutdown failed", "error", err)
			}
		}()
	}

	// --- maintenance plane (optional) ---
	if cfg.Retention.MaxAge > 0 {
		maint := maintenance.NewScheduler(logger)
		task := &maintenance.RetentionTask{
			Store:        st,
			MaxAge:       cfg.Retention.MaxAge.Std(),
			Logger:       logger,
			ScheduleExpr: cfg.Retention.Schedule,
		}
		if err := maint.Register(task); err != nil {
			return err
		}
		if err := maint.Start(); err != nil {
			return err
		}
		defer maint.Stop()
	}

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// --- main event loop ---
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, reloading job collection")
				if err := mgr.Reload(); err != nil {
					logger.Error("reload failed", "error", err)
				}
			default:
				logger.Info("shutdown signal received", "signal", sig.String())
				return nil
			}
		case <-watcher.Events():
			logger.Info("jobs document changed on disk, reloading")
			if err := mgr.Reload(); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

// loadConfig resolves and loads the configuration, falling back to the
// built-in defaults when no file exists anywhere on the search path.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.ResolveConfigPath()
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openStore resolves the store root and makes sure its directories exist.
func openStore(cfg *config.Config) (*store.Store, error) {
	root := cfg.DataDir
	if root == "" {
		root = store.DefaultRoot()
	}
	st := store.New(job.ExpandHome(root))
	if err := st.EnsureDirs(); err != nil {
		return nil, err
	}
	return st, nil
}
