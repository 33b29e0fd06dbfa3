//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfig_DefaultsAndYAML(t *testing.T) {
	p := writeConfig(t, `
database:
  url: postgres://u:p@localhost/db
payment:
  mercadopago:
    access_token: yaml-token
rate_limit:
  requests: 3
`)
	cfg, err := LoadConfig(p, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Payment.MercadoPago.AccessToken != "yaml-token" {
		t.Errorf("expected yaml token, got %q", cfg.Payment.MercadoPago.AccessToken)
	}
	if cfg.RateLimit.Requests != 3 {
		t.Errorf("expected 3 requests, got %d", cfg.RateLimit.Requests)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("expected default window 1m, got %s", cfg.RateLimit.Window)
	}
	if cfg.Payment.MercadoPago.BaseURL != "https://api.mercadopago.com" {
		t.Errorf("unexpected base url %q", cfg.Payment.MercadoPago.BaseURL)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("unexpected addr %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	p := writeConfig(t, `
database:
  url: postgres://yaml
payment:
  mercadopago:
    access_token: yaml-token
`)
	t.Setenv("MP_ACCESS_TOKEN", "env-token")
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := LoadConfig(p, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Payment.MercadoPago.AccessToken != "env-token" {
		t.Errorf("expected env token to win, got %q", cfg.Payment.MercadoPago.AccessToken)
	}
	if cfg.Database.URL != "postgres://env" {
		t.Errorf("expected env database url, got %q", cfg.Database.URL)
	}
}

func TestLoadConfig_MissingTokenIsNotFatal(t *testing.T) {
	t.Setenv("MP_ACCESS_TOKEN", "")
	p := writeConfig(t, "database:\n  url: postgres://x\n")
	cfg, err := LoadConfig(p, false)
	if err != nil {
		t.Fatalf("missing token must not fail startup: %v", err)
	}
	if cfg.Payment.MercadoPago.AccessToken != "" {
		t.Errorf("expected empty token")
	}
}

func TestLoadConfig_RequiresDatabaseOutsideDev(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := LoadConfig(missing, false); err == nil {
		t.Fatal("expected error without database url")
	}
	cfg, err := LoadConfig(missing, true)
	if err != nil {
		t.Fatalf("dev mode should not need a database: %v", err)
	}
	if !cfg.Runtime.Dev {
		t.Error("expected dev flag to be recorded")
	}
}
