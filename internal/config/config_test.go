package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("ALTEGIO_TOKEN", "")
	t.Setenv("AVAILABILITY_CONCURRENCY", "")
	cfg := Load()
	if cfg.Port != "3000" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.AltegioBaseURL != "https://api.alteg.io/api/v1" {
		t.Fatalf("unexpected altegio base url %s", cfg.AltegioBaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != len(DefaultCORSOrigins) {
		t.Fatalf("expected default origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.AvailabilityConcurrency != 4 {
		t.Fatalf("expected default concurrency 4, got %d", cfg.AvailabilityConcurrency)
	}
	if cfg.ProcessedEventTTL != 72*time.Hour {
		t.Fatalf("expected default processed ttl, got %s", cfg.ProcessedEventTTL)
	}
	if cfg.Integrations()["altegio"] {
		t.Fatalf("expected altegio unconfigured by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("ALTEGIO_TOKEN", "tok")
	t.Setenv("ALTEGIO_TIMEOUT", "3s")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	t.Setenv("STRIPE_CURRENCY", "USD")
	t.Setenv("DEMO_SLOTS", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.RateLimitRPS)
	}
	if cfg.AltegioTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.AltegioTimeout)
	}
	if cfg.StripeCurrency != "usd" {
		t.Fatalf("expected lower-cased currency, got %s", cfg.StripeCurrency)
	}
	if !cfg.DemoSlots {
		t.Fatalf("expected demo slots enabled")
	}
	integrations := cfg.Integrations()
	if !integrations["altegio"] || !integrations["telegram"] {
		t.Fatalf("expected altegio and telegram configured, got %v", integrations)
	}
	if integrations["stripe"] {
		t.Fatalf("expected stripe unconfigured")
	}
}

func TestParseIntMap(t *testing.T) {
	m, err := ParseIntMap("30:12199769, 60:12200654,,90:12200653")
	if err != nil {
		t.Fatalf("ParseIntMap error: %v", err)
	}
	if len(m) != 3 || m[60] != 12200654 {
		t.Fatalf("unexpected map %v", m)
	}
	keys := SortedKeys(m)
	if keys[0] != 30 || keys[2] != 90 {
		t.Fatalf("unexpected key order %v", keys)
	}

	if _, err := ParseIntMap("30=1"); err == nil {
		t.Fatal("expected error for malformed pair")
	}
	if _, err := ParseIntMap("abc:1"); err == nil {
		t.Fatal("expected error for non-numeric key")
	}
	empty, err := ParseIntMap("")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty map, got %v %v", empty, err)
	}
}
