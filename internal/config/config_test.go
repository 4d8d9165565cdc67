package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.PaymentTimeout != 10*time.Second {
		t.Errorf("expected 10s payment timeout, got %s", cfg.PaymentTimeout)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("expected 24h token TTL, got %s", cfg.TokenTTL)
	}
	if cfg.MaxPaymentAttempts != 5 {
		t.Errorf("expected 5 payment attempts, got %d", cfg.MaxPaymentAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://medport.example, https://staging.medport.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("expected port 9999, got %s", cfg.Port)
	}
	if cfg.PaymentTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", cfg.PaymentTimeout)
	}
	if !cfg.RedisTLS {
		t.Error("expected RedisTLS true")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://staging.medport.example" {
		t.Errorf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("expected 2.5 rps, got %v", cfg.RateLimitRPS)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_PAYMENT_ATTEMPTS", "not-a-number")
	t.Setenv("PAYMENT_TIMEOUT", "soon")

	cfg := Load()

	if cfg.MaxPaymentAttempts != 5 {
		t.Errorf("expected fallback to 5, got %d", cfg.MaxPaymentAttempts)
	}
	if cfg.PaymentTimeout != 10*time.Second {
		t.Errorf("expected fallback to 10s, got %s", cfg.PaymentTimeout)
	}
}
