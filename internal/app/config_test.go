package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AGRISENSE_CONFIG_PATH", "")
	t.Setenv("PORT", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" || cfg.RecomputeConcurrency != 4 || cfg.Database.Driver != "postgres" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agrisense.yaml")
	body := "port: \"9000\"\nredis_addr: redis:6379\nrecompute_concurrency: 8\ndatabase:\n  driver: sqlite\n  sqlite_path: /tmp/a.db\ncors_allowed_origins:\n  - https://a.example\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AGRISENSE_CONFIG_PATH", path)
	t.Setenv("PORT", "9100")
	t.Setenv("RECOMPUTE_CONCURRENCY", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9100" {
		t.Fatalf("env should win, port = %q", cfg.Port)
	}
	if cfg.RedisAddr != "redis:6379" || cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/a.db" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.RecomputeConcurrency != 1 {
		t.Fatalf("concurrency should clamp to 1, got %d", cfg.RecomputeConcurrency)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://a.example" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("AGRISENSE_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
