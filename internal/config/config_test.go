package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerAddr != ":8080" {
		t.Errorf("expected default server addr :8080, got %s", cfg.ServerAddr)
	}
	if cfg.AccessTokenTTL != 7*24*time.Hour {
		t.Errorf("expected default access TTL 168h, got %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("expected default refresh TTL 720h, got %v", cfg.RefreshTokenTTL)
	}
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		t.Error("expected generated dev secrets")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		t.Error("access and refresh secrets must differ")
	}
}

func TestDurationOverride(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	cfg := Load()
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("expected 15m, got %v", cfg.AccessTokenTTL)
	}
}

func TestDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("REFRESH_TOKEN_TTL", "not-a-duration")
	cfg := Load()
	if cfg.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("expected fallback 720h, got %v", cfg.RefreshTokenTTL)
	}
}

func TestSplitList(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	cfg := Load()
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %d", len(cfg.AllowedOrigins))
	}
	if cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("unexpected origin %q", cfg.AllowedOrigins[1])
	}
}
