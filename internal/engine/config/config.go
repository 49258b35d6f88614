package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agrisense/agrisense-backend/internal/platform/envutil"
)

const (
	TypeHTTP = "http"
	TypeMock = "mock"
)

type Duration struct {
	Duration time.Duration
}

// UnmarshalJSON accepts "5s" style strings or integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		if strings.TrimSpace(u) == "" {
			d.Duration = 0
			return nil
		}
		dd, err := time.ParseDuration(u)
		if err != nil {
			return err
		}
		d.Duration = dd
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

type EngineConfig struct {
	Type    string `json:"type"`
	BaseURL string `json:"base_url,omitempty"`

	// Timeout bounds each call. Zero means callers bound calls through ctx.
	Timeout     Duration `json:"timeout,omitempty"`
	InitMaxWait Duration `json:"init_max_wait,omitempty"`
	HealthPath  string   `json:"health_path,omitempty"`
	OpsPath     string   `json:"ops_path,omitempty"`
}

func defaultConfig() EngineConfig {
	return EngineConfig{
		Type:        TypeMock,
		InitMaxWait: Duration{Duration: 30 * time.Second},
		HealthPath:  "/v1/health",
		OpsPath:     "/v1/ops",
	}
}

// Load reads ENGINE_CONFIG_PATH when set, then applies ENGINE_TYPE,
// ENGINE_BASE_URL and ENGINE_TIMEOUT_SECONDS on top.
func Load() (EngineConfig, error) {
	cfg := defaultConfig()

	if path := envutil.String("ENGINE_CONFIG_PATH", ""); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read engine config: %w", err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse engine config: %w", err)
		}
	}

	if v := envutil.String("ENGINE_TYPE", ""); v != "" {
		cfg.Type = v
	}
	if v := envutil.String("ENGINE_BASE_URL", ""); v != "" {
		cfg.BaseURL = v
	}
	if v := envutil.Seconds("ENGINE_TIMEOUT_SECONDS", -1); v >= 0 {
		cfg.Timeout = Duration{Duration: v}
	}

	return cfg.normalized()
}

func (c EngineConfig) normalized() (EngineConfig, error) {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.HealthPath == "" {
		c.HealthPath = "/v1/health"
	}
	if c.OpsPath == "" {
		c.OpsPath = "/v1/ops"
	}
	if c.InitMaxWait.Duration <= 0 {
		c.InitMaxWait.Duration = 30 * time.Second
	}
	switch c.Type {
	case "", TypeMock:
		c.Type = TypeMock
	case TypeHTTP:
		if c.BaseURL == "" {
			return c, fmt.Errorf("engine type %q requires base_url", c.Type)
		}
	default:
		return c, fmt.Errorf("unknown engine type %q", c.Type)
	}
	return c, nil
}
