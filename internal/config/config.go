package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QUIZ_REDIS_ADDR.
const EnvPrefix = "quiz"

type Config struct {
	Server struct {
		Port          string `yaml:"port"`
		AllowedOrigin string `yaml:"allowed_origin" envconfig:"allowed_origin"`
	} `yaml:"server"`
	Log  LogConfig `yaml:"log"`
	Auth struct {
		AccessTokenSecret string `yaml:"access_token_secret" envconfig:"access_token_secret"`
		CookieName        string `yaml:"cookie_name" envconfig:"cookie_name"`
		TokenTTL          string `yaml:"token_ttl" envconfig:"token_ttl"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		GeneratorURL      string `yaml:"generator_url" envconfig:"generator_url"`
		GenerationTimeout string `yaml:"generation_timeout" envconfig:"generation_timeout"`
		CacheTTL          string `yaml:"cache_ttl" envconfig:"cache_ttl"`
	} `yaml:"quiz"`
	WS struct {
		ReadLimit     int64   `yaml:"read_limit" envconfig:"read_limit"`
		SendBuffer    int     `yaml:"send_buffer" envconfig:"send_buffer"`
		RatePerSecond float64 `yaml:"rate_per_second" envconfig:"rate_per_second"`
		Burst         int     `yaml:"burst"`
	} `yaml:"ws"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML config from path, then applies QUIZ_* environment overrides.
// A missing file is allowed so the service can be configured from env alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "access_token"
	}
	if c.WS.ReadLimit <= 0 {
		c.WS.ReadLimit = 4096
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 32
	}
	if c.WS.RatePerSecond <= 0 {
		c.WS.RatePerSecond = 5
	}
	if c.WS.Burst <= 0 {
		c.WS.Burst = 10
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
