package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnvAppliesDefaults(t *testing.T) {
	t.Setenv("CAPWA_AUTH_SECRET", "test-secret")
	t.Setenv("CAPWA_RATE_BURST", "7")
	t.Setenv("CAPWA_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.Storage.Driver != DriverMemory {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Fatalf("expected 1h token ttl, got %s", cfg.Auth.TokenTTL)
	}
	if cfg.Audit.Retention != 100 {
		t.Fatalf("expected retention 100, got %d", cfg.Audit.Retention)
	}
	if cfg.Stats.ActiveWindow != 30*24*time.Hour {
		t.Fatalf("expected 30 day window, got %s", cfg.Stats.ActiveWindow)
	}
	if cfg.HTTP.RateBurst != 7 {
		t.Fatalf("env override ignored: %d", cfg.HTTP.RateBurst)
	}
	if len(cfg.HTTP.TrustedProxies) != 2 || cfg.HTTP.TrustedProxies[1] != "192.0.2.1" {
		t.Fatalf("unexpected trusted proxies %v", cfg.HTTP.TrustedProxies)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capwa.yaml")
	body := strings.Join([]string{
		"listen_addr: \":9000\"",
		"storage:",
		"  driver: sqlite",
		"  sqlite_path: /tmp/capwa-test.db",
		"auth:",
		"  token_secret: from-file",
		"  bootstrap_admin:",
		"    email: admin@capwa.ph",
		"    password: Str0ng!pass",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.Storage.Driver != DriverSQLite {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Auth.Admin.Email != "admin@capwa.ph" || cfg.Auth.Admin.Name != "Administrator" {
		t.Fatalf("unexpected admin seed: %+v", cfg.Auth.Admin)
	}
}

func TestValidate(t *testing.T) {
	base := func() AppConfig {
		return AppConfig{
			Storage: StorageConfig{Driver: DriverMemory},
			Auth:    AuthConfig{TokenSecret: "s", TokenTTL: time.Hour},
			Audit:   AuditConfig{Retention: 100},
		}
	}

	cases := map[string]func(*AppConfig){
		"missing secret":  func(c *AppConfig) { c.Auth.TokenSecret = " " },
		"zero ttl":        func(c *AppConfig) { c.Auth.TokenTTL = 0 },
		"unknown driver":  func(c *AppConfig) { c.Storage.Driver = "mongo" },
		"postgres no dsn": func(c *AppConfig) { c.Storage.Driver = DriverPostgres },
		"zero retention":  func(c *AppConfig) { c.Audit.Retention = 0 },
		"half admin seed": func(c *AppConfig) { c.Auth.Admin.Email = "a@b.c" },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
