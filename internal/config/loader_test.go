package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/npcforge/internal/config"
)

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Store.Dir = "from-yaml"
	err := config.ApplyEnv(cfg, map[string]string{
		"NPCFORGE_SERVER_LOG_LEVEL":          "error",
		"NPCFORGE_STORE_BACKEND":             "sqlite",
		"NPCFORGE_STORE_SQLITE_PATH":         "/var/lib/npcforge.db",
		"NPCFORGE_RESILIENCE_RESET_TIMEOUT":  "45s",
		"NPCFORGE_RESILIENCE_MAX_FAILURES":   "9",
		"NPCFORGE_TELEMETRY_SAMPLE_RATIO":    "0.5",
		"NPCFORGE_EDITOR_DEFAULT_SCOPE":      "cerulean",
		"UNRELATED_STORE_BACKEND":            "postgres",
		"NPCFORGE_SERVER_SHUTDOWN_TIMEOUT":   "1s",
		"NPCFORGE_STORE_POSTGRES_DSN_SUFFIX": "ignored",
	})
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	checks := []struct {
		name     string
		got, want any
	}{
		{"log level", cfg.Server.LogLevel, config.LogError},
		{"backend", cfg.Store.Backend, config.StoreSQLite},
		{"sqlite path", cfg.Store.SQLitePath, "/var/lib/npcforge.db"},
		{"dir untouched", cfg.Store.Dir, "from-yaml"},
		{"reset timeout", cfg.Resilience.ResetTimeout, 45 * time.Second},
		{"max failures", cfg.Resilience.MaxFailures, 9},
		{"sample ratio", cfg.Telemetry.SampleRatio, 0.5},
		{"default scope", cfg.Editor.DefaultScope, "cerulean"},
		{"shutdown timeout", cfg.Server.ShutdownTimeout, time.Second},
		{"listen addr untouched", cfg.Server.ListenAddr, ":8080"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnv_BadValue(t *testing.T) {
	t.Parallel()

	err := config.ApplyEnv(config.Default(), map[string]string{"NPCFORGE_RESILIENCE_MAX_FAILURES": "many"})
	if err == nil || !strings.Contains(err.Error(), "config: parse env") {
		t.Fatalf("err = %v, want parse env error", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "npcforge.yaml")
	if err := os.WriteFile(path, []byte("store:\n  backend: file\n  dir: zones\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Not parallel: mutates the process environment.
	t.Setenv("NPCFORGE_SERVER_LISTEN_ADDR", "127.0.0.1:7000")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:7000" {
		t.Errorf("listen_addr = %q, want env override", cfg.Server.ListenAddr)
	}
	if cfg.Store.Dir != "zones" {
		t.Errorf("store.dir = %q, want zones", cfg.Store.Dir)
	}
}

func TestLoad_EnvIsValidated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "npcforge.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NPCFORGE_STORE_BACKEND", "postgres")

	_, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "store.postgres_dsn is required") {
		t.Fatalf("err = %v, want postgres dsn error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config: open") {
		t.Fatalf("err = %v, want open error", err)
	}
}
