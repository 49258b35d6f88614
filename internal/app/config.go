package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agrisense/agrisense-backend/internal/data/db"
	"github.com/agrisense/agrisense-backend/internal/platform/envutil"
)

type Config struct {
	Port        string `yaml:"port"`
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`

	Database db.Config `yaml:"database"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	RecomputeConcurrency int      `yaml:"recompute_concurrency"`
	CORSOrigins          []string `yaml:"cors_allowed_origins"`
	MetricsEnabled       bool     `yaml:"metrics_enabled"`
}

func defaultConfig() Config {
	return Config{
		Port:                 "8080",
		ServiceName:          "agrisense-backend",
		Environment:          "development",
		Database:             db.Config{Driver: "postgres", Host: "localhost", Port: "5432", User: "postgres", Name: "agrisense"},
		RecomputeConcurrency: 4,
		MetricsEnabled:       true,
	}
}

// LoadConfig starts from defaults, applies the YAML file named by
// AGRISENSE_CONFIG_PATH when set, then lets environment variables win.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("AGRISENSE_CONFIG_PATH", ""); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.ServiceName = envutil.String("SERVICE_NAME", cfg.ServiceName)
	cfg.Environment = envutil.String("APP_ENV", cfg.Environment)

	cfg.Database.Driver = envutil.String("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = envutil.String("DATABASE_URL", cfg.Database.URL)
	cfg.Database.Host = envutil.String("POSTGRES_HOST", cfg.Database.Host)
	cfg.Database.Port = envutil.String("POSTGRES_PORT", cfg.Database.Port)
	cfg.Database.User = envutil.String("POSTGRES_USER", cfg.Database.User)
	cfg.Database.Password = envutil.String("POSTGRES_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = envutil.String("POSTGRES_NAME", cfg.Database.Name)
	cfg.Database.SQLitePath = envutil.String("SQLITE_PATH", cfg.Database.SQLitePath)

	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envutil.String("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envutil.Int("REDIS_DB", cfg.RedisDB)

	cfg.RecomputeConcurrency = envutil.Int("RECOMPUTE_CONCURRENCY", cfg.RecomputeConcurrency)
	if cfg.RecomputeConcurrency < 1 {
		cfg.RecomputeConcurrency = 1
	}
	cfg.CORSOrigins = envutil.List("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)
	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)
	return cfg, nil
}
