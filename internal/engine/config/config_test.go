package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDurationAcceptsStringAndNanos(t *testing.T) {
	var cfg EngineConfig
	if err := json.Unmarshal([]byte(`{"timeout":"5s","init_max_wait":2000000000}`), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Timeout.Duration != 5*time.Second {
		t.Fatalf("timeout=%v", cfg.Timeout.Duration)
	}
	if cfg.InitMaxWait.Duration != 2*time.Second {
		t.Fatalf("init_max_wait=%v", cfg.InitMaxWait.Duration)
	}
	if err := json.Unmarshal([]byte(`{"timeout":true}`), &cfg); err == nil {
		t.Fatalf("expected error for bool duration")
	}
}

func TestLoadDefaultsToMock(t *testing.T) {
	t.Setenv("ENGINE_CONFIG_PATH", "")
	t.Setenv("ENGINE_TYPE", "")
	t.Setenv("ENGINE_BASE_URL", "")
	t.Setenv("ENGINE_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Type != TypeMock || cfg.HealthPath != "/v1/health" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.json")
	if err := os.WriteFile(path, []byte(`{"type":"http","base_url":"http://file:9000/","timeout":"3s"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ENGINE_CONFIG_PATH", path)
	t.Setenv("ENGINE_TYPE", "")
	t.Setenv("ENGINE_BASE_URL", "http://env:9100")
	t.Setenv("ENGINE_TIMEOUT_SECONDS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Type != TypeHTTP {
		t.Fatalf("type=%q", cfg.Type)
	}
	if cfg.BaseURL != "http://env:9100" {
		t.Fatalf("base_url=%q", cfg.BaseURL)
	}
	if cfg.Timeout.Duration != 7*time.Second {
		t.Fatalf("timeout=%v", cfg.Timeout.Duration)
	}
}

func TestLoadRejectsHTTPWithoutBaseURL(t *testing.T) {
	t.Setenv("ENGINE_CONFIG_PATH", "")
	t.Setenv("ENGINE_TYPE", "http")
	t.Setenv("ENGINE_BASE_URL", "")
	t.Setenv("ENGINE_TIMEOUT_SECONDS", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for http engine without base_url")
	}
}
