package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("TIMEZONE", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("expected sqlite storage by default, got %s", cfg.Storage.Driver)
	}
	if cfg.TokenTTL != 72*time.Hour {
		t.Fatalf("expected 72h token ttl, got %v", cfg.TokenTTL)
	}
	if cfg.Location != time.Local {
		t.Fatalf("expected local time zone, got %v", cfg.Location)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TOKEN_TTL_HOURS", "1")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("STORAGE_DRIVER", "Redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("TIMEZONE", "Asia/Tokyo")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.TokenTTL != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", cfg.TokenTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.Storage.Driver != "redis" || cfg.Storage.RedisAddr != "redis:6379" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Location.String() != "Asia/Tokyo" {
		t.Fatalf("expected Asia/Tokyo, got %v", cfg.Location)
	}
}

func TestLoadIgnoresBadValues(t *testing.T) {
	t.Setenv("TOKEN_TTL_HOURS", "soon")
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")

	cfg := Load()
	if cfg.TokenTTL != 72*time.Hour {
		t.Fatalf("expected fallback ttl, got %v", cfg.TokenTTL)
	}
	if cfg.Location != time.Local {
		t.Fatalf("expected fallback zone, got %v", cfg.Location)
	}
}
