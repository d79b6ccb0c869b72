package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	libconfig "gatebroker/backend/libs/config"
	"gatebroker/backend/services/broker-service/internal/brokererr"
)

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.yaml")
	body := `
database:
  dsn: postgres://broker@db/broker
auth:
  jwtSecret: s3cret
  tokenTTL: 2h
proxy:
  hostname: tunnel.internal
policy:
  kind: bounded
  limit: 3
  overrides:
    lab-1:
      kind: exclusive
      blocking: true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(libconfig.FileEnv, path)
	t.Setenv("BROKER_PROXY_PORT", "5822")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Policy.Kind != "bounded" || cfg.Policy.Limit != 3 {
		t.Fatalf("unexpected policy %+v", cfg.Policy.PolicyRule)
	}
	rule, ok := cfg.Policy.Overrides["lab-1"]
	if !ok || rule.Kind != "exclusive" || !rule.Blocking {
		t.Fatalf("unexpected override %+v", cfg.Policy.Overrides)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.Auth.TokenTTL)
	}
	if cfg.Proxy.Hostname != "tunnel.internal" || cfg.Proxy.Port != "5822" {
		t.Fatalf("unexpected proxy %+v", cfg.Proxy)
	}
	if cfg.HTTPAddress() != ":8090" {
		t.Fatalf("unexpected http address %s", cfg.HTTPAddress())
	}
}

func TestValidateRequiresDSNAndSecret(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing dsn error")
	}
	cfg.Database.DSN = "postgres://x"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing secret error")
	}
	cfg.Auth.JWTSecret = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPropertiesRequired(t *testing.T) {
	cfg := Default()
	cfg.Proxy.Port = "  "
	props := NewProperties(cfg)

	host, err := props.GetRequiredProperty(PropertyProxyHostname)
	if err != nil || host != "localhost" {
		t.Fatalf("unexpected host %q err %v", host, err)
	}

	_, err = props.GetRequiredProperty(PropertyProxyPort)
	if !errors.Is(err, brokererr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := props.GetRequiredProperty("unknown"); !errors.Is(err, brokererr.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown key, got %v", err)
	}
}
