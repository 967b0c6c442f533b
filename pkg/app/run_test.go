package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/flemzord/cronos/internal/config"
)

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	t.Chdir(t.TempDir())

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Shell != config.DefaultShell {
		t.Errorf("shell = %q, want default", cfg.Shell)
	}
}

func TestLoadConfig_ExplicitMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want wrapped ErrNotExist", err)
	}
}

func TestOpenStore_CreatesLayout(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "data")
	st, err := openStore(&config.Config{DataDir: root})
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(st.JobsPath())); err != nil {
		t.Errorf("store root missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "logs", "runs")); err != nil {
		t.Errorf("runs directory missing: %v", err)
	}
}
