package config

import (
	"errors"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"CHECKOUT_UPSTREAM_BASE_URL": "https://api.arkamarket.example",
		"CHECKOUT_AUTH_JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Upstream.Timeout != 10*time.Second {
		t.Errorf("unexpected upstream timeout: %s", cfg.Upstream.Timeout)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected redis addr: %s", cfg.Redis.Addr)
	}
	if cfg.Sessions.TTL != 2*time.Hour {
		t.Errorf("unexpected session ttl: %s", cfg.Sessions.TTL)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" {
		t.Errorf("unexpected idempotency header: %s", cfg.Idempotency.Header)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["CHECKOUT_SERVER_PORT"] = "9090"
	env["CHECKOUT_UPSTREAM_TIMEOUT"] = "3s"
	env["CHECKOUT_REDIS_DB"] = "2"
	env["CHECKOUT_SESSION_TTL"] = "30m"

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Upstream.Timeout != 3*time.Second {
		t.Errorf("unexpected upstream timeout: %s", cfg.Upstream.Timeout)
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis db: %d", cfg.Redis.DB)
	}
	if cfg.Sessions.TTL != 30*time.Minute {
		t.Errorf("unexpected session ttl: %s", cfg.Sessions.TTL)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}

	fields := vErr.Fields()
	want := map[string]bool{"Upstream.BaseURL": false, "Auth.JWTSecret": false}
	for _, f := range fields {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("expected %s in validation fields %v", name, fields)
		}
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	env := baseEnv()
	env["CHECKOUT_UPSTREAM_TIMEOUT"] = "not-a-duration"

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Upstream.Timeout != 10*time.Second {
		t.Errorf("expected fallback timeout, got %s", cfg.Upstream.Timeout)
	}
}
