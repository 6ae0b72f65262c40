package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFileWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database-dsn: "file:file.db"
jwt:
  secret: "file-secret"
  access-expiry: 15m
redis:
  addr: "localhost:6379"
smtp:
  username: "file-user"
`
	if errWrite := os.WriteFile(path, []byte(content), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}

	t.Setenv(EnvDBConnection, "postgres://env/db")
	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvAccessExpiry, "")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}

	// Environment beats the file; unset env leaves file values alone.
	if cfg.DatabaseDSN != "postgres://env/db" {
		t.Fatalf("dsn = %q", cfg.DatabaseDSN)
	}
	if cfg.JWT.Secret != "file-secret" {
		t.Fatalf("secret = %q", cfg.JWT.Secret)
	}
	if cfg.JWT.AccessExpiry != 15*time.Minute {
		t.Fatalf("access expiry = %v", cfg.JWT.AccessExpiry)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.SMTP.Username != "file-user" {
		t.Fatalf("smtp username = %q", cfg.SMTP.Username)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvDBConnection, "file:defaults.db")

	cfg, errLoad := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.JWT.AccessExpiry != defaultAccessExpiry {
		t.Fatalf("access expiry = %v", cfg.JWT.AccessExpiry)
	}
	if cfg.JWT.RefreshExpiry != defaultRefreshExpiry {
		t.Fatalf("refresh expiry = %v", cfg.JWT.RefreshExpiry)
	}
	if cfg.SMTP.Host != defaultSMTPHost || cfg.SMTP.Port != defaultSMTPPort {
		t.Fatalf("smtp = %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	}
}

func TestLoadMissingDSN(t *testing.T) {
	t.Setenv(EnvDBConnection, "")

	if _, errLoad := Load(filepath.Join(t.TempDir(), "missing.yaml")); errLoad == nil {
		t.Fatal("expected an error when no database dsn is configured")
	}
}
