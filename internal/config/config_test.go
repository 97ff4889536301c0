package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Source.CSVPath != "kdramas.csv" {
		t.Errorf("expected csv_path 'kdramas.csv', got %q", cfg.Source.CSVPath)
	}
	if cfg.Source.FallbackEncoding != "euc-kr" {
		t.Errorf("expected fallback encoding 'euc-kr', got %q", cfg.Source.FallbackEncoding)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected driver 'sqlite', got %q", cfg.Database.Driver)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Query.MaxLimit != 100 {
		t.Errorf("expected max_limit 100, got %d", cfg.Query.MaxLimit)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
source:
  delimiter: ";"
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.DelimiterRune() != ';' {
		t.Errorf("expected delimiter ';', got %q", cfg.DelimiterRune())
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Server.ImageBaseURL != "https://image.tmdb.org/t/p/w500" {
		t.Errorf("expected default image_base_url, got %q", cfg.Server.ImageBaseURL)
	}
	if cfg.Query.DefaultLimit != 20 {
		t.Errorf("expected default_limit 20, got %d", cfg.Query.DefaultLimit)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	if _, err := parse([]byte("database:\n  driver: mysql\n")); err == nil {
		t.Error("expected error for unsupported driver")
	}
	if _, err := parse([]byte("source:\n  delimiter: \"::\"\n")); err == nil {
		t.Error("expected error for multi-character delimiter")
	}
}

func TestParseNonPositiveLimitsFallBack(t *testing.T) {
	cfg, err := parse([]byte("query:\n  default_limit: 0\n  max_limit: -5\n"))
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if cfg.Query.DefaultLimit != 20 {
		t.Errorf("expected default_limit 20, got %d", cfg.Query.DefaultLimit)
	}
	if cfg.Query.MaxLimit != 100 {
		t.Errorf("expected max_limit 100, got %d", cfg.Query.MaxLimit)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("source:\n  csv_path: /data/dramas.csv\n"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Source.CSVPath != "/data/dramas.csv" {
		t.Errorf("expected csv_path from file, got %q", cfg.Source.CSVPath)
	}
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host '127.0.0.1', got %q", cfg.Server.Host)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KDRAMA_CSV", "/tmp/other.csv")
	t.Setenv("KDRAMA_PORT", "8123")
	t.Setenv("DATABASE_URL", "postgres://user@localhost/kdramas?sslmode=disable")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Source.CSVPath != "/tmp/other.csv" {
		t.Errorf("expected csv override, got %q", cfg.Source.CSVPath)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("expected port 8123, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver from DATABASE_URL, got %q", cfg.Database.Driver)
	}
}

func TestGetDatabasePath(t *testing.T) {
	cfg := &Config{}
	defaultPath := cfg.GetDatabasePath()
	if filepath.Base(defaultPath) != "kdramas.db" {
		t.Errorf("expected default db file 'kdramas.db', got %q", defaultPath)
	}

	cfg.Database.Path = "/custom/path.db"
	if cfg.GetDatabasePath() != "/custom/path.db" {
		t.Errorf("expected '/custom/path.db', got %q", cfg.GetDatabasePath())
	}
}
