package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.LoadLimit != 10000 || cfg.Store.LoadTimeout != 3*time.Second {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Simulator.Seed != 42 || cfg.Dashboard.RowCap != 600 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	start, end, err := cfg.Simulator.Window()
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if !start.Equal(time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 12, 16, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("unexpected window %s - %s", start, end)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowwatch.yaml")
	if err := os.WriteFile(path, []byte(`
store:
  driver: sqlite
  path: /tmp/rollups.db
  loadTimeout: 5s
logging:
  level: debug
`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FLOWWATCH_LOG_FORMAT", "json")
	t.Setenv("FLOWWATCH_SIM_SEED", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.LoadTimeout != 5*time.Second || cfg.Store.LoadLimit != 10000 {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON || cfg.Simulator.Seed != 7 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("FLOWWATCH_STORE_DRIVER", "postgres")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadValidatesFields(t *testing.T) {
	t.Setenv("FLOWWATCH_STORE_DRIVER", "mongo")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "Store.Driver fails oneof") {
		t.Fatalf("expected driver validation error, got %v", err)
	}

	t.Setenv("FLOWWATCH_STORE_DRIVER", "file")
	t.Setenv("FLOWWATCH_SIM_PUSHGATEWAY", "not a url")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "Simulator.PushGateway") {
		t.Fatalf("expected push gateway validation error, got %v", err)
	}
	t.Setenv("FLOWWATCH_SIM_PUSHGATEWAY", "http://pushgateway:9091")

	t.Setenv("FLOWWATCH_CACHE_ENABLED", "true")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "Cache.Addr") {
		t.Fatalf("expected cache addr validation error, got %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "flowwatch.env")
	if err := os.WriteFile(envPath, []byte("FLOWWATCH_STORE_LOAD_LIMIT=250\nFLOWWATCH_REFRESH_INTERVAL=30s\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, key := range []string{"FLOWWATCH_STORE_LOAD_LIMIT", "FLOWWATCH_REFRESH_INTERVAL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("FLOWWATCH_ENV_FILE", envPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.LoadLimit != 250 || cfg.Dashboard.RefreshInterval != 30*time.Second {
		t.Fatalf("env file not applied: limit=%d interval=%s", cfg.Store.LoadLimit, cfg.Dashboard.RefreshInterval)
	}

	t.Setenv("FLOWWATCH_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestCacheConfigValkey(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Cache.Addr = "valkey:6379"
	v := cfg.Cache.Valkey()
	if v.Addr != "valkey:6379" || v.Prefix != "flowwatch:" || v.DialTimeout != 2*time.Second || v.MaxRetries != 2 {
		t.Fatalf("unexpected valkey config: %+v", v)
	}
}
