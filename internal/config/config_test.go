package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("server port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.JWT.AccessTokenExpiry != 15*time.Minute {
		t.Errorf("access expiry = %v, want 15m", cfg.JWT.AccessTokenExpiry)
	}
	if cfg.JWT.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("refresh ttl = %v, want 168h", cfg.JWT.RefreshTokenTTL)
	}
	if cfg.Auth.DefaultTenantID != 1 {
		t.Errorf("default tenant = %d, want 1", cfg.Auth.DefaultTenantID)
	}
	if cfg.Auth.DefaultRole != "user" {
		t.Errorf("default role = %q, want user", cfg.Auth.DefaultRole)
	}
}

func TestLoad_RequiresSigningKey(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("Load() should fail without a signing key")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_REFRESH_TTL", "48h")
	t.Setenv("AUTH_DEFAULT_TENANT_ID", "5")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("server port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.JWT.RefreshTokenTTL != 48*time.Hour {
		t.Errorf("refresh ttl = %v, want 48h", cfg.JWT.RefreshTokenTTL)
	}
	if cfg.Auth.DefaultTenantID != 5 {
		t.Errorf("default tenant = %d, want 5", cfg.Auth.DefaultTenantID)
	}
	if cfg.Database.DSN() != "host=db.internal port=5432 user=auth password=auth dbname=authdb sslmode=disable" {
		t.Errorf("dsn = %q", cfg.Database.DSN())
	}
}
