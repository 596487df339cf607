package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Addr != ":8787" || cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ObjectStore.Enabled() {
		t.Fatal("object store should be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://:memory:")
	t.Setenv("TASKBOARD_ACCESS_TTL_SECONDS", "60")
	t.Setenv("OBJECT_STORE_USE_SSL", "true")
	t.Setenv("TASKBOARD_REFRESH_TTL_SECONDS", "not-a-number")

	cfg := Load()
	if cfg.DatabaseURL != "sqlite://:memory:" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.AccessTTL != time.Minute {
		t.Fatalf("AccessTTL = %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("RefreshTTL = %v, want default on bad input", cfg.RefreshTTL)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("UseSSL should be set from env")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	contents := `
addr: ":9000"
database_url: "sqlite:///tmp/board.db"
access_ttl: 5m
object_store:
  endpoint: "localhost:9001"
  bucket: "snapshots"
  use_ssl: false
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("API_ADDR", ":9100")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("Addr = %q, env should win over file", cfg.Addr)
	}
	if cfg.DatabaseURL != "sqlite:///tmp/board.db" || cfg.AccessTTL != 5*time.Minute {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.ObjectStore.Enabled() || cfg.ObjectStore.Region != "us-east-1" {
		t.Fatalf("unexpected object store: %+v", cfg.ObjectStore)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("adr: \":1\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadSMTPFromEnv(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "boards@example.com")
	t.Setenv("TASKBOARD_PUBLIC_URL", "https://boards.example.com")

	cfg := Load()
	if cfg.SMTP.Host != "smtp.example.com" || cfg.SMTP.Port != "587" || cfg.SMTP.From != "boards@example.com" {
		t.Fatalf("unexpected smtp config: %+v", cfg.SMTP)
	}
	if cfg.PublicURL != "https://boards.example.com" {
		t.Fatalf("unexpected public url %q", cfg.PublicURL)
	}
}
