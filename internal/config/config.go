package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`                // enable sampling in prod
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // per-request budget for /pix and /pix/status
	WebhookTimeout time.Duration `yaml:"webhook_timeout"` // reconcile budget inside /webhook
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url" env:"REDIS_URL"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type MercadoPagoConfig struct {
	AccessToken       string        `yaml:"access_token" env:"MP_ACCESS_TOKEN"`
	BaseURL           string        `yaml:"base_url" env:"MP_BASE_URL"`
	Timeout           time.Duration `yaml:"timeout"`
	WebhookSecret     string        `yaml:"webhook_secret" env:"MP_WEBHOOK_SECRET"`
	NotificationURL   string        `yaml:"notification_url" env:"MP_NOTIFICATION_URL"`
	DefaultPayerEmail string        `yaml:"default_payer_email"`
}

type PaymentConfig struct {
	MercadoPago MercadoPagoConfig `yaml:"mercadopago"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	MaxKeys  int           `yaml:"max_keys"` // in-memory limiter only
}

type SweeperConfig struct {
	Disabled   bool          `yaml:"disabled" env:"SWEEPER_DISABLED"`
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	MaxAge     time.Duration `yaml:"max_age"`
	Workers    int           `yaml:"workers"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file is tolerated), applies
// environment overrides and defaults, and validates the result.
// A missing processor token is not an error: intent creation reports it per request.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" && !dev {
		return nil, errors.New("database.url is required")
	}
	if cfg.RateLimit.Requests <= 0 {
		return nil, errors.New("rate_limit.requests must be positive")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.WriteTimeout = orDefault(cfg.HTTP.WriteTimeout, 30*time.Second)
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 15*time.Second)
	cfg.HTTP.WebhookTimeout = orDefault(cfg.HTTP.WebhookTimeout, 8*time.Second)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}

	mp := &cfg.Payment.MercadoPago
	if mp.BaseURL == "" {
		mp.BaseURL = "https://api.mercadopago.com"
	}
	mp.Timeout = orDefault(mp.Timeout, 10*time.Second)
	if mp.DefaultPayerEmail == "" {
		mp.DefaultPayerEmail = "comprador@desapegopiaui.com.br"
	}

	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 10
	}
	cfg.RateLimit.Window = orDefault(cfg.RateLimit.Window, time.Minute)
	if cfg.RateLimit.MaxKeys <= 0 {
		cfg.RateLimit.MaxKeys = 10_000
	}

	cfg.Sweeper.Interval = orDefault(cfg.Sweeper.Interval, time.Minute)
	cfg.Sweeper.StaleAfter = orDefault(cfg.Sweeper.StaleAfter, 2*time.Minute)
	cfg.Sweeper.MaxAge = orDefault(cfg.Sweeper.MaxAge, 24*time.Hour)
	cfg.Sweeper.LockTTL = orDefault(cfg.Sweeper.LockTTL, 50*time.Second)
	if cfg.Sweeper.Workers <= 0 {
		cfg.Sweeper.Workers = 4
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
